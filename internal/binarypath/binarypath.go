// Package binarypath implements C2: resolving a built application's binary
// path from AppBuildInfo plus the host OS/arch, validating each candidate in
// order and recording every attempt for diagnosis.
package binarypath

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	retry "github.com/avast/retry-go/v5"

	"github.com/onkernel/wdio-native-driver/internal/platform"
)

// ValidationError is one of the typed validation failures from §4.2.
type ValidationError string

const (
	ErrFileNotFound    ValidationError = "FILE_NOT_FOUND"
	ErrIsDirectory     ValidationError = "IS_DIRECTORY"
	ErrNotExecutable   ValidationError = "NOT_EXECUTABLE"
	ErrPermissionDenied ValidationError = "PERMISSION_DENIED"
	ErrAccessError     ValidationError = "ACCESS_ERROR"
)

// Attempt records one candidate path and whether it validated.
type Attempt struct {
	Path  string
	Valid bool
	Error ValidationError // zero value "" when Valid
}

// Result is the output of Resolve: the first valid candidate (if any) plus
// the full attempt log, even on success, per testable property #4.
type Result struct {
	Success          bool
	BinaryPath       string
	GenerationErrors []string
	Attempts         []Attempt
}

// Options controls candidate generation.
type Options struct {
	Debug bool   // default false (release)
	Arch  string // default runtime.GOARCH
	OS    string // default runtime.GOOS
}

type template struct {
	tool platform.BuildTool
	os   string
	arch string // "" matches any arch
	rel  string // relative path, {appName} substituted
}

var templates = []template{
	{platform.Builder, "darwin", "arm64", "dist/mac-arm64/{appName}.app/Contents/MacOS/{appName}"},
	{platform.Builder, "darwin", "amd64", "dist/mac/{appName}.app/Contents/MacOS/{appName}"},
	{platform.Builder, "darwin", "", "dist/mac-universal/{appName}.app/Contents/MacOS/{appName}"},
	{platform.Builder, "linux", "", "dist/linux-unpacked/{appName}"},
	{platform.Builder, "windows", "", "dist/win-unpacked/{appName}.exe"},

	{platform.Forge, "darwin", "arm64", "out/{appName}-darwin-arm64/{appName}.app/Contents/MacOS/{appName}"},
	{platform.Forge, "darwin", "amd64", "out/{appName}-darwin-x64/{appName}.app/Contents/MacOS/{appName}"},
	{platform.Forge, "linux", "arm64", "out/{appName}-linux-arm64/{appName}"},
	{platform.Forge, "linux", "amd64", "out/{appName}-linux-x64/{appName}"},
	{platform.Forge, "windows", "arm64", "out/{appName}-win32-arm64/{appName}.exe"},
	{platform.Forge, "windows", "amd64", "out/{appName}-win32-x64/{appName}.exe"},

	{platform.Tauri, "darwin", "", "src-tauri/target/release/bundle/macos/{appName}.app/Contents/MacOS/{appName}"},
	{platform.Tauri, "linux", "", "src-tauri/target/release/{appName}"},
	{platform.Tauri, "windows", "", "src-tauri/target/release/{appName}.exe"},
}

// goArchToNodeArch maps Go's GOARCH naming onto the {arch} vocabulary used by
// Forge's out/ directory naming (darwin-x64, not darwin-amd64).
func goArchToNodeArch(arch string) string {
	switch arch {
	case "amd64":
		return "x64"
	case "arm64":
		return "arm64"
	default:
		return arch
	}
}

// candidates generates the ordered candidate path list for one build tool / OS / arch.
func candidates(info *platform.AppBuildInfo, opts Options) []string {
	osName := opts.OS
	if osName == "" {
		osName = runtime.GOOS
	}
	arch := opts.Arch
	if arch == "" {
		arch = runtime.GOARCH
	}

	var rels []string
	for _, tpl := range templates {
		if tpl.tool != info.Tool || tpl.os != osName {
			continue
		}
		if tpl.arch != "" && tpl.arch != arch {
			continue
		}
		rel := strings.ReplaceAll(tpl.rel, "{appName}", info.AppName)
		if opts.Debug {
			rel = strings.Replace(rel, "release", "debug", 1)
			rel = strings.Replace(rel, "dist/mac-arm64", "dist/mac-arm64-debug", 1)
			rel = strings.Replace(rel, "dist/mac", "dist/mac-debug", 1)
			rel = strings.Replace(rel, "dist/linux-unpacked", "dist/linux-unpacked-debug", 1)
			rel = strings.Replace(rel, "dist/win-unpacked", "dist/win-unpacked-debug", 1)
		}
		rels = append(rels, rel)
	}
	return rels
}

// Resolve implements the C2 contract: resolve(projectRoot, appBuildInfo, options) → Result.
func Resolve(projectRoot string, info *platform.AppBuildInfo, opts Options) Result {
	rels := candidates(info, opts)
	var result Result
	if len(rels) == 0 {
		return result
	}

	for _, rel := range rels {
		full := filepath.Join(projectRoot, rel)
		attempt := validate(full)
		result.Attempts = append(result.Attempts, attempt)
		if attempt.Valid && !result.Success {
			result.Success = true
			result.BinaryPath = attempt.Path
		}
	}
	return result
}

// validate asserts existence, regular-file-ness, and the executable bit
// (Unix) or .exe extension (Windows), retrying once on a transient stat
// error (never on ENOENT).
func validate(path string) Attempt {
	var info os.FileInfo
	err := retry.New(
		retry.Attempts(2),
		retry.RetryIf(func(err error) bool {
			return err != nil && !os.IsNotExist(err)
		}),
	).Do(func() error {
		var statErr error
		info, statErr = os.Stat(path)
		return statErr
	})
	if err != nil {
		if os.IsNotExist(err) {
			return Attempt{Path: path, Error: ErrFileNotFound}
		}
		if os.IsPermission(err) {
			return Attempt{Path: path, Error: ErrPermissionDenied}
		}
		return Attempt{Path: path, Error: ErrAccessError}
	}

	if info.IsDir() {
		return Attempt{Path: path, Error: ErrIsDirectory}
	}

	if runtime.GOOS == "windows" {
		if !strings.EqualFold(filepath.Ext(path), ".exe") {
			return Attempt{Path: path, Error: ErrNotExecutable}
		}
		return Attempt{Path: path, Valid: true}
	}

	if info.Mode()&0o111 == 0 {
		return Attempt{Path: path, Error: ErrNotExecutable}
	}
	return Attempt{Path: path, Valid: true}
}

// FatalError builds the §7 "Binary not found" error when Resolve yields no
// success, carrying the full attempt log for diagnosis.
func FatalError(r Result) error {
	if r.Success {
		return nil
	}
	lines := make([]string, 0, len(r.Attempts))
	for _, a := range r.Attempts {
		lines = append(lines, fmt.Sprintf("%s: %s", a.Path, a.Error))
	}
	return fmt.Errorf("no valid application binary found; attempts:\n%s", strings.Join(lines, "\n"))
}
