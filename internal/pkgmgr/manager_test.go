package pkgmgr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	m, err := ByName("pacman")
	require.NoError(t, err)
	assert.Equal(t, "pacman", m.Name)
	assert.Equal(t, "arch", m.Family)

	_, err = ByName("portage")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown package manager")
}

func TestCommandBuilders(t *testing.T) {
	tests := []struct {
		name    string
		manager string
		build   func(m *Manager) []string
		want    []string
	}{
		{
			name:    "apt install",
			manager: "apt",
			build:   func(m *Manager) []string { return m.Install("curl", "jq") },
			want:    []string{"apt-get", "install", "-y", "curl", "jq"},
		},
		{
			name:    "pacman remove",
			manager: "pacman",
			build:   func(m *Manager) []string { return m.Remove("vim") },
			want:    []string{"pacman", "-R", "--noconfirm", "vim"},
		},
		{
			name:    "dnf refresh",
			manager: "dnf",
			build:   func(m *Manager) []string { return m.Refresh() },
			want:    []string{"dnf", "makecache", "--refresh"},
		},
		{
			name:    "zypper upgrade",
			manager: "zypper",
			build:   func(m *Manager) []string { return m.Upgrade() },
			want:    []string{"zypper", "--non-interactive", "update"},
		},
		{
			name:    "apt reinstall",
			manager: "apt",
			build:   func(m *Manager) []string { return m.Reinstall("libssl3") },
			want:    []string{"apt-get", "install", "--reinstall", "-y", "libssl3"},
		},
		{
			name:    "apk purge cache",
			manager: "apk",
			build:   func(m *Manager) []string { return m.PurgeCache() },
			want:    []string{"apk", "cache", "clean"},
		},
		{
			name:    "apt build tools",
			manager: "apt",
			build:   func(m *Manager) []string { return m.InstallBuildTools() },
			want:    []string{"apt-get", "install", "-y", "build-essential"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ByName(tt.manager)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.build(m))
		})
	}
}

func TestForceOverwrite(t *testing.T) {
	pacman, err := ByName("pacman")
	require.NoError(t, err)

	argv := pacman.ForceOverwrite("glibc", []string{"/usr/lib/libc.so.6", "/usr/lib/ld-linux*"})
	assert.Equal(t, []string{
		"pacman", "-S", "--noconfirm",
		"--overwrite", "/usr/lib/libc.so.6",
		"--overwrite", "/usr/lib/ld-linux*",
		"glibc",
	}, argv)

	// No globs defaults to overwriting anything the package owns.
	argv = pacman.ForceOverwrite("glibc", nil)
	assert.Contains(t, argv, "*")

	// The implicated package is mandatory.
	assert.Nil(t, pacman.ForceOverwrite("", []string{"*"}))

	dnf, err := ByName("dnf")
	require.NoError(t, err)
	assert.Nil(t, dnf.ForceOverwrite("glibc", nil), "dnf has no overwrite mode")
}

func TestReconfigure(t *testing.T) {
	apt, err := ByName("apt")
	require.NoError(t, err)
	assert.Equal(t, []string{"dpkg", "--configure", "-a"}, apt.Reconfigure("dpkg"))
	assert.Equal(t, []string{"dpkg-reconfigure", "tzdata"}, apt.Reconfigure("tzdata"))

	pacman, err := ByName("pacman")
	require.NoError(t, err)
	assert.Nil(t, pacman.Reconfigure("tzdata"))
}

func TestRefreshKeyringSequences(t *testing.T) {
	for _, name := range []string{"apt", "dnf", "pacman", "apk"} {
		m, err := ByName(name)
		require.NoError(t, err)
		seq := m.RefreshKeyring()
		require.NotEmpty(t, seq, "manager %s should refresh its keyring", name)
		for _, argv := range seq {
			assert.NotEmpty(t, argv)
		}
	}

	zypper, err := ByName("zypper")
	require.NoError(t, err)
	assert.Nil(t, zypper.RefreshKeyring())
}

func TestAllLockPaths(t *testing.T) {
	paths := AllLockPaths()
	assert.Contains(t, paths, "/var/lib/dpkg/lock-frontend")
	assert.Contains(t, paths, "/var/lib/pacman/db.lck")
	assert.GreaterOrEqual(t, len(paths), 5)
}

func TestKnown(t *testing.T) {
	assert.Equal(t, []string{"apt", "dnf", "pacman", "zypper", "apk"}, Known())
}

func TestDetectDoesNotPanic(t *testing.T) {
	// The host may or may not carry a package manager; either answer is fine
	// as long as the error is the sentinel.
	m, err := Detect()
	if err != nil {
		assert.True(t, errors.Is(err, ErrNoManager))
		return
	}
	assert.NotEmpty(t, m.Name)
}
