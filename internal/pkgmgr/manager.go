// Package pkgmgr describes the package managers the tool can drive: the
// command lines for their common operations and the filesystem locations
// (locks, caches) that remediation routines need to know about.
package pkgmgr

import (
	"errors"
	"fmt"
	"os/exec"
)

// ErrNoManager reports that no supported package manager was found on PATH.
var ErrNoManager = errors.New("pkgmgr: no supported package manager found")

// Manager holds the static description of one package manager.
type Manager struct {
	// Name is the canonical manager identifier: apt, dnf, pacman, zypper, apk.
	Name string
	// Bin is the binary driven for package operations, e.g. "apt-get".
	Bin string
	// Family is the platform family the manager belongs to.
	Family string
	// LockPaths are the lock files the manager may leave behind.
	LockPaths []string
	// CacheGlobs match cached package artifacts safe to delete.
	CacheGlobs []string
}

// managers is the registry, in detection priority order.
var managers = []*Manager{
	{
		Name:   "apt",
		Bin:    "apt-get",
		Family: "debian",
		LockPaths: []string{
			"/var/lib/dpkg/lock-frontend",
			"/var/lib/dpkg/lock",
			"/var/cache/apt/archives/lock",
			"/var/lib/apt/lists/lock",
		},
		CacheGlobs: []string{
			"/var/cache/apt/archives/*.deb",
			"/var/cache/apt/archives/partial/**",
		},
	},
	{
		Name:   "dnf",
		Bin:    "dnf",
		Family: "fedora",
		LockPaths: []string{
			"/var/cache/dnf/metadata_lock.pid",
			"/var/lib/dnf/rpmdb_lock.pid",
			"/var/run/dnf.pid",
		},
		CacheGlobs: []string{
			"/var/cache/dnf/**/*.rpm",
		},
	},
	{
		Name:   "pacman",
		Bin:    "pacman",
		Family: "arch",
		LockPaths: []string{
			"/var/lib/pacman/db.lck",
		},
		CacheGlobs: []string{
			"/var/cache/pacman/pkg/*.pkg.tar.*",
		},
	},
	{
		Name:   "zypper",
		Bin:    "zypper",
		Family: "suse",
		LockPaths: []string{
			"/var/run/zypp.pid",
		},
		CacheGlobs: []string{
			"/var/cache/zypp/packages/**/*.rpm",
		},
	},
	{
		Name:   "apk",
		Bin:    "apk",
		Family: "alpine",
		LockPaths: []string{
			"/lib/apk/db/lock",
		},
		CacheGlobs: []string{
			"/var/cache/apk/*",
		},
	},
}

// ByName looks up a manager by its canonical name.
func ByName(name string) (*Manager, error) {
	for _, m := range managers {
		if m.Name == name {
			return m, nil
		}
	}
	return nil, fmt.Errorf("pkgmgr: unknown package manager %q", name)
}

// Detect probes PATH for a supported package manager, in registry order.
func Detect() (*Manager, error) {
	for _, m := range managers {
		if _, err := exec.LookPath(m.Bin); err == nil {
			return m, nil
		}
	}
	return nil, ErrNoManager
}

// Known lists the canonical names of every supported manager.
func Known() []string {
	names := make([]string, 0, len(managers))
	for _, m := range managers {
		names = append(names, m.Name)
	}
	return names
}

// AllLockPaths returns the lock files of every known manager. Used when
// remediation runs without a detected manager.
func AllLockPaths() []string {
	var paths []string
	for _, m := range managers {
		paths = append(paths, m.LockPaths...)
	}
	return paths
}
