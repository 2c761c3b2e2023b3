package pkgmgr

// Argv builders for the logical operations the tool drives. A nil return
// means the manager has no equivalent for the operation; callers report that
// instead of inventing a command.

// Install returns the non-interactive install command for pkgs.
func (m *Manager) Install(pkgs ...string) []string {
	switch m.Name {
	case "apt":
		return append([]string{"apt-get", "install", "-y"}, pkgs...)
	case "dnf":
		return append([]string{"dnf", "install", "-y"}, pkgs...)
	case "pacman":
		return append([]string{"pacman", "-S", "--noconfirm"}, pkgs...)
	case "zypper":
		return append([]string{"zypper", "--non-interactive", "install"}, pkgs...)
	case "apk":
		return append([]string{"apk", "add"}, pkgs...)
	}
	return nil
}

// Remove returns the non-interactive removal command for pkgs.
func (m *Manager) Remove(pkgs ...string) []string {
	switch m.Name {
	case "apt":
		return append([]string{"apt-get", "remove", "-y"}, pkgs...)
	case "dnf":
		return append([]string{"dnf", "remove", "-y"}, pkgs...)
	case "pacman":
		return append([]string{"pacman", "-R", "--noconfirm"}, pkgs...)
	case "zypper":
		return append([]string{"zypper", "--non-interactive", "remove"}, pkgs...)
	case "apk":
		return append([]string{"apk", "del"}, pkgs...)
	}
	return nil
}

// Refresh returns the command that refreshes the package indexes.
func (m *Manager) Refresh() []string {
	switch m.Name {
	case "apt":
		return []string{"apt-get", "update"}
	case "dnf":
		return []string{"dnf", "makecache", "--refresh"}
	case "pacman":
		return []string{"pacman", "-Sy"}
	case "zypper":
		return []string{"zypper", "refresh"}
	case "apk":
		return []string{"apk", "update"}
	}
	return nil
}

// Upgrade returns the full-system upgrade command.
func (m *Manager) Upgrade() []string {
	switch m.Name {
	case "apt":
		return []string{"apt-get", "upgrade", "-y"}
	case "dnf":
		return []string{"dnf", "upgrade", "-y"}
	case "pacman":
		return []string{"pacman", "-Syu", "--noconfirm"}
	case "zypper":
		return []string{"zypper", "--non-interactive", "update"}
	case "apk":
		return []string{"apk", "upgrade"}
	}
	return nil
}

// Reinstall returns the command that reinstalls one package in place.
func (m *Manager) Reinstall(pkg string) []string {
	switch m.Name {
	case "apt":
		return []string{"apt-get", "install", "--reinstall", "-y", pkg}
	case "dnf":
		return []string{"dnf", "reinstall", "-y", pkg}
	case "pacman":
		return []string{"pacman", "-S", "--noconfirm", pkg}
	case "zypper":
		return []string{"zypper", "--non-interactive", "install", "--force", pkg}
	case "apk":
		return []string{"apk", "fix", pkg}
	}
	return nil
}

// ForceOverwrite returns the command that reinstalls pkg while overwriting
// conflicting files matched by globs. Managers without an overwrite mode
// return nil.
func (m *Manager) ForceOverwrite(pkg string, globs []string) []string {
	if pkg == "" {
		return nil
	}
	switch m.Name {
	case "apt":
		return []string{"apt-get", "-o", "Dpkg::Options::=--force-overwrite", "install", "--reinstall", "-y", pkg}
	case "pacman":
		argv := []string{"pacman", "-S", "--noconfirm"}
		for _, g := range globs {
			argv = append(argv, "--overwrite", g)
		}
		if len(globs) == 0 {
			argv = append(argv, "--overwrite", "*")
		}
		return append(argv, pkg)
	}
	return nil
}

// PurgeCache returns the command that drops the package download cache.
func (m *Manager) PurgeCache() []string {
	switch m.Name {
	case "apt":
		return []string{"apt-get", "clean"}
	case "dnf":
		return []string{"dnf", "clean", "all"}
	case "pacman":
		return []string{"pacman", "-Sc", "--noconfirm"}
	case "zypper":
		return []string{"zypper", "clean", "--all"}
	case "apk":
		return []string{"apk", "cache", "clean"}
	}
	return nil
}

// RefreshKeyring returns the command sequence that restores the manager's
// package-signing trust store.
func (m *Manager) RefreshKeyring() [][]string {
	switch m.Name {
	case "apt":
		return [][]string{
			{"apt-get", "install", "--reinstall", "-y", "debian-archive-keyring"},
			{"apt-get", "update"},
		}
	case "dnf":
		return [][]string{
			{"dnf", "reinstall", "-y", "fedora-gpg-keys"},
		}
	case "pacman":
		return [][]string{
			{"pacman-key", "--init"},
			{"pacman-key", "--populate"},
			{"pacman", "-Sy", "--noconfirm", "archlinux-keyring"},
		}
	case "apk":
		return [][]string{
			{"apk", "add", "--upgrade", "alpine-keys"},
		}
	}
	return nil
}

// InstallBuildTools returns the command that installs the platform's
// compiler and build tool group.
func (m *Manager) InstallBuildTools() []string {
	switch m.Name {
	case "apt":
		return []string{"apt-get", "install", "-y", "build-essential"}
	case "dnf":
		return []string{"dnf", "groupinstall", "-y", "Development Tools"}
	case "pacman":
		return []string{"pacman", "-S", "--noconfirm", "base-devel"}
	case "zypper":
		return []string{"zypper", "--non-interactive", "install", "-t", "pattern", "devel_basis"}
	case "apk":
		return []string{"apk", "add", "build-base"}
	}
	return nil
}

// Reconfigure returns the command that re-runs a service's package
// configuration step. Only the dpkg family has this concept; "dpkg" itself
// means "finish every interrupted configuration".
func (m *Manager) Reconfigure(service string) []string {
	if m.Name != "apt" {
		return nil
	}
	if service == "dpkg" || service == "" {
		return []string{"dpkg", "--configure", "-a"}
	}
	return []string{"dpkg-reconfigure", service}
}
