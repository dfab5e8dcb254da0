// Package apparmor implements C12: detecting Ubuntu's unprivileged-userns
// AppArmor restriction and optionally installing a minimal profile that lets
// the app binary create user namespaces, grounded on the teacher's process.go
// use of golang.org/x/sys/unix for low-level Linux syscalls.
package apparmor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"path/filepath"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const restrictSysctlPath = "/proc/sys/kernel/apparmor_restrict_unprivileged_userns"

// KernelInfo is the subset of uname(2) this package cares about.
type KernelInfo struct {
	Release string // e.g. "6.8.0-40-generic"
	Major   int
}

// DetectKernel reads the running kernel's release via uname(2), per the
// teacher's pattern of calling into golang.org/x/sys/unix directly rather
// than shelling out to `uname`.
func DetectKernel() (KernelInfo, error) {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return KernelInfo{}, fmt.Errorf("apparmor: uname: %w", err)
	}
	release := charsToString(uts.Release[:])
	major := parseMajorVersion(release)
	return KernelInfo{Release: release, Major: major}, nil
}

func charsToString(b []byte) string {
	n := bytes.IndexByte(b, 0)
	if n < 0 {
		n = len(b)
	}
	return string(b[:n])
}

func parseMajorVersion(release string) int {
	dot := strings.IndexByte(release, '.')
	if dot < 0 {
		return 0
	}
	major, err := strconv.Atoi(release[:dot])
	if err != nil {
		return 0
	}
	return major
}

// RestrictionEnabled reports whether the running kernel is ≥6.x and the
// kernel.apparmor_restrict_unprivileged_userns sysctl reads "1", per §4.12.
// Returns false, nil on kernels/platforms where the sysctl file doesn't
// exist (no restriction to work around).
func RestrictionEnabled() (bool, error) {
	kernel, err := DetectKernel()
	if err != nil {
		return false, err
	}
	return restrictionEnabledAt(kernel.Major, restrictSysctlPath)
}

// restrictionEnabledAt is RestrictionEnabled's testable core: kernelMajor and
// sysctlPath are injected so tests can exercise both branches without
// depending on the host's actual kernel or /proc layout.
func restrictionEnabledAt(kernelMajor int, sysctlPath string) (bool, error) {
	if kernelMajor < 6 {
		return false, nil
	}

	data, err := os.ReadFile(sysctlPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("apparmor: read %s: %w", sysctlPath, err)
	}
	return strings.TrimSpace(string(data)) == "1", nil
}

// profileTemplate is a minimal AppArmor profile allowing unrestricted
// userns creation for one binary, named after its absolute path per §6's
// filesystem layout ("AppArmor profile ... named after the app's binary path").
const profileTemplate = `# generated by wdio-native-driver, safe to remove
abi <abi/4.0>,
include <tunables/global>

profile %s %s flags=(unconfined) {
  userns,
}
`

// ProfileName derives the AppArmor profile name from a binary path: the
// binary's absolute path. The profile's on-disk filename is derived by
// profileFileName, which replaces the slashes with dots.
func ProfileName(binaryPath string) string {
	abs, err := filepath.Abs(binaryPath)
	if err != nil {
		abs = binaryPath
	}
	return abs
}

func profileFileName(binaryPath string) string {
	name := strings.TrimPrefix(ProfileName(binaryPath), "/")
	return strings.ReplaceAll(name, "/", ".")
}

// Mode mirrors §3's apparmorAutoInstall tri-state.
type Mode string

const (
	ModeOff  Mode = "off"
	ModeOn   Mode = "true"
	ModeSudo Mode = "sudo"
)

const systemProfileDir = "/etc/apparmor.d"

// Install writes a minimal profile for binaryPath and loads it via
// apparmor_parser, per §4.12. When mode is ModeSudo and the process isn't
// already root, apparmor_parser is invoked through `sudo -n` (non-interactive);
// failure there is treated the same as any other install failure: the
// caller is expected to warn and continue per §7's "AppArmor install: warn,
// continue without profile" policy — Install returns the error for the
// caller to log, it never panics or exits.
func Install(binaryPath string, mode Mode) (profilePath string, err error) {
	if mode == ModeOff || mode == "" {
		return "", fmt.Errorf("apparmor: install called with mode off")
	}

	if err := os.MkdirAll(systemProfileDir, 0o755); err != nil {
		return "", fmt.Errorf("apparmor: create profile dir: %w", err)
	}
	profilePath = filepath.Join(systemProfileDir, profileFileName(binaryPath))
	profile := fmt.Sprintf(profileTemplate, ProfileName(binaryPath), binaryPath)
	if err := os.WriteFile(profilePath, []byte(profile), 0o644); err != nil {
		return "", fmt.Errorf("apparmor: write profile: %w", err)
	}

	if err := runParser("apparmor_parser", "-r", profilePath, mode); err != nil {
		return profilePath, fmt.Errorf("apparmor: load profile: %w", err)
	}
	return profilePath, nil
}

// Remove unloads and deletes a profile previously installed by Install.
func Remove(profilePath string, mode Mode) error {
	if profilePath == "" {
		return nil
	}
	if err := runParser("apparmor_parser", "-R", profilePath, mode); err != nil {
		return fmt.Errorf("apparmor: unload profile: %w", err)
	}
	return os.Remove(profilePath)
}

func runParser(bin string, args ...any) error {
	mode, _ := args[len(args)-1].(Mode)
	strArgs := make([]string, 0, len(args)-1)
	for _, a := range args[:len(args)-1] {
		strArgs = append(strArgs, a.(string))
	}

	name, fullArgs := bin, strArgs
	if mode == ModeSudo && os.Geteuid() != 0 {
		name = "sudo"
		fullArgs = append([]string{"-n", bin}, strArgs...)
	}

	cmd := exec.Command(name, fullArgs...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s %s: %w: %s", name, strings.Join(fullArgs, " "), err, string(out))
	}
	return nil
}

// IsRoot reports whether the current process is running as root. runParser
// makes its own os.Geteuid check when deciding whether to use `sudo -n`.
func IsRoot() bool {
	u, err := user.Current()
	if err != nil {
		return os.Geteuid() == 0
	}
	return u.Uid == "0"
}
