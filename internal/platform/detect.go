// Package platform identifies the host Linux distribution.
//
// Detection reads /etc/os-release and reduces the distribution identity to a
// coarse family identifier (debian, fedora, arch, suse, alpine). Error
// patterns declare the families or concrete distributions they apply to, so
// the family mapping is what lets a rule written for "debian" fire on an
// Ubuntu host.
package platform

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Info describes the detected host platform.
type Info struct {
	// ID is the os-release ID field, e.g. "ubuntu".
	ID string
	// IDLike lists the os-release ID_LIKE tokens, e.g. ["debian"].
	IDLike []string
	// Family is the canonical platform family derived from ID and ID_LIKE.
	Family string
	// PrettyName is the os-release PRETTY_NAME field, for display only.
	PrettyName string
}

const osReleasePath = "/etc/os-release"

// familyByID maps distribution identifiers to their platform family.
var familyByID = map[string]string{
	"debian":              "debian",
	"ubuntu":              "debian",
	"linuxmint":           "debian",
	"pop":                 "debian",
	"raspbian":            "debian",
	"kali":                "debian",
	"fedora":              "fedora",
	"rhel":                "fedora",
	"centos":              "fedora",
	"rocky":               "fedora",
	"almalinux":           "fedora",
	"amzn":                "fedora",
	"arch":                "arch",
	"archarm":             "arch",
	"manjaro":             "arch",
	"endeavouros":         "arch",
	"garuda":              "arch",
	"opensuse":            "suse",
	"opensuse-leap":       "suse",
	"opensuse-tumbleweed": "suse",
	"sles":                "suse",
	"alpine":              "alpine",
}

// FamilyOf maps a distribution identifier to its platform family. Unknown
// identifiers map to themselves so filtering stays consistent for
// distributions the table does not know about.
func FamilyOf(id string) string {
	id = strings.ToLower(strings.TrimSpace(id))
	if fam, ok := familyByID[id]; ok {
		return fam
	}
	return id
}

// Expand returns every identifier a platform hint satisfies: the hint itself
// plus its family when the family differs. A rule declaring "debian" accepts
// the hint "ubuntu" through this expansion.
func Expand(hint string) []string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" {
		return nil
	}
	fam := FamilyOf(hint)
	if fam == hint {
		return []string{hint}
	}
	return []string{hint, fam}
}

// Detect reads /etc/os-release and returns the host platform identity.
func Detect() (*Info, error) {
	f, err := os.Open(osReleasePath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", osReleasePath, err)
	}
	defer f.Close()
	return parseOSRelease(f)
}

// parseOSRelease handles the KEY=VALUE format of os-release(5), including
// optionally quoted values.
func parseOSRelease(r io.Reader) (*Info, error) {
	info := &Info{}
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		value = unquoteValue(value)
		switch key {
		case "ID":
			info.ID = strings.ToLower(value)
		case "ID_LIKE":
			for _, tok := range strings.Fields(value) {
				info.IDLike = append(info.IDLike, strings.ToLower(tok))
			}
		case "PRETTY_NAME":
			info.PrettyName = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("parsing os-release: %w", err)
	}
	if info.ID == "" {
		return nil, fmt.Errorf("parsing os-release: no ID field")
	}
	info.Family = resolveFamily(info)
	return info, nil
}

// resolveFamily prefers a direct ID mapping and falls back to the first
// recognized ID_LIKE token.
func resolveFamily(info *Info) string {
	if fam, ok := familyByID[info.ID]; ok {
		return fam
	}
	for _, like := range info.IDLike {
		if fam, ok := familyByID[like]; ok {
			return fam
		}
	}
	return info.ID
}

func unquoteValue(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}
