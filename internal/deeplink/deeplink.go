// Package deeplink implements C9: firing a custom-protocol URL at an
// already-running app instance, grounded on the teacher's cmd/chromium-launcher
// pattern of building and spawning a detached child process, generalized to
// deeplink's three OS-specific command shapes from §4.9.
package deeplink

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// ErrInvalidProtocol is returned (wrapped with the rejected scheme) when url
// uses http, https, or file — §4.9's validation rule.
var ErrInvalidProtocol = fmt.Errorf("Invalid deeplink protocol")

var rejectedSchemes = map[string]bool{"http": true, "https": true, "file": true}

// Validate parses rawURL and rejects http/https/file schemes or malformed
// URLs, per §4.9.
func Validate(rawURL string) (*url.URL, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("malformed deeplink URL %q: %w", rawURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("malformed deeplink URL %q: missing scheme", rawURL)
	}
	if rejectedSchemes[strings.ToLower(u.Scheme)] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidProtocol, u.Scheme)
	}
	return u, nil
}

// AppendUserDataDir appends (or overwrites) a "userData" query parameter
// carrying dir, inserting it before any fragment, per §4.9's single-instance
// targeting rule for Windows/Linux.
func AppendUserDataDir(rawURL, dir string) (string, error) {
	u, err := Validate(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("userData", dir)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// commandFor returns the OS command and arguments to fire rawURL, per §4.9's
// platform table. macOS needs no userData modification (it identifies the
// instance by bundle id) but does need the query string pre-decoded once so
// `open` doesn't double-encode it.
func commandFor(goos, rawURL string, appBinaryPath string) (string, []string, error) {
	switch goos {
	case "windows":
		if appBinaryPath == "" {
			return "", nil, fmt.Errorf("deeplink: appBinaryPath is required to target a Windows instance")
		}
		return "cmd", []string{"/c", "start", "", rawURL}, nil
	case "darwin":
		decoded, err := url.QueryUnescape(rawURL)
		if err != nil {
			decoded = rawURL
		}
		return "open", []string{decoded}, nil
	case "linux":
		return "xdg-open", []string{rawURL}, nil
	default:
		return "", nil, fmt.Errorf("deeplink: unsupported platform %s", goos)
	}
}

const triggerTimeout = 5 * time.Second

// Trigger validates rawURL and spawns the OS-appropriate command detached,
// resolving once the process has started (not once it exits), per §4.9. The
// 5s timeout bounds only the spawn attempt itself — the spawned process runs
// to its own completion, unaffected by ctx or the timeout. appBinaryPath is
// only consulted on Windows, where it gates targeting.
func Trigger(ctx context.Context, rawURL, appBinaryPath string) error {
	if _, err := Validate(rawURL); err != nil {
		return err
	}

	name, args, err := commandFor(runtime.GOOS, rawURL, appBinaryPath)
	if err != nil {
		return err
	}

	cmd := exec.Command(name, args...)
	cmd.Stdin = nil
	cmd.Stdout = nil
	cmd.Stderr = nil

	started := make(chan error, 1)
	go func() { started <- cmd.Start() }()

	select {
	case err := <-started:
		if err != nil {
			return fmt.Errorf("deeplink: spawn %s: %w", name, err)
		}
		// Detach: reap the child in the background so it doesn't become a
		// zombie, without waiting for it before resolving.
		go cmd.Wait()
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(triggerTimeout):
		return fmt.Errorf("deeplink: spawning %s timed out after %s", name, triggerTimeout)
	}
}
