// Package browser implements C13: the integration surface a test author
// actually calls — a command-registration map attached to a Browser façade,
// matching §4.10 step 3's "install commands on the browser"
// (execute, mock, mockAll, clearAllMocks, resetAllMocks, restoreAllMocks,
// isMockFunction, triggerDeeplink), grounded on the Design Notes' guidance
// to keep option merging ("service-level → capability-level → environment")
// a small explicit function tested the way the teacher's cmd/config tests
// environment-driven config resolution.
package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"sync"

	"github.com/onkernel/wdio-native-driver/internal/deeplink"
	"github.com/onkernel/wdio-native-driver/internal/mock"
)

// Executor abstracts "run this script in the target process and return its
// serialized result" — the one shape CDP's Runtime.evaluate and Tauri's
// plugin Execute both share per C3/C4's Design Notes grounding.
type Executor interface {
	Execute(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error)
}

// CommandFunc is the shape every registered browser command takes: raw JSON
// args in, a value (or error) out, matching how a wdio command is invoked
// from the test script over the wire.
type CommandFunc func(ctx context.Context, args []json.RawMessage) (any, error)

// UserDataFetcher resolves the live app's userData directory, used to scope
// a deeplink to one running instance on Windows/Linux per §4.9. Callers
// supply this as a thin wrapper around Execute calling
// electron.app.getPath('userData'), injected so Browser doesn't need to
// know the exact script string used to fetch it.
type UserDataFetcher func(ctx context.Context) (string, error)

// Browser is the per-instance façade a test author's capability binds to.
// One Browser exists per instance name; multiremote sessions hold one per
// instance, matching §3's MultiRemoteState shape.
type Browser struct {
	mu sync.Mutex

	executor        Executor
	mockRegistry    *mock.Registry
	deeplinkCapable bool // true only for Electron instances per §4.9
	fetchUserData   UserDataFetcher
	appBinaryPath   string

	userDataDir     string
	userDataFetched bool

	commands map[string]CommandFunc
}

// New builds a Browser for one instance. fetchUserData/appBinaryPath may be
// zero-valued when deeplinkCapable is false (Tauri instances never register
// triggerDeeplink).
func New(executor Executor, registry *mock.Registry, deeplinkCapable bool, fetchUserData UserDataFetcher, appBinaryPath string) *Browser {
	b := &Browser{
		executor:        executor,
		mockRegistry:    registry,
		deeplinkCapable: deeplinkCapable,
		fetchUserData:   fetchUserData,
		appBinaryPath:   appBinaryPath,
	}
	b.commands = b.buildCommands()
	return b
}

func (b *Browser) buildCommands() map[string]CommandFunc {
	cmds := map[string]CommandFunc{
		"execute":          b.executeCommand,
		"mock":             b.mockCommand,
		"mockAll":          b.mockAllCommand,
		"clearAllMocks":    b.clearAllMocksCommand,
		"resetAllMocks":    b.resetAllMocksCommand,
		"restoreAllMocks":  b.restoreAllMocksCommand,
		"isMockFunction":   b.isMockFunctionCommand,
	}
	if b.deeplinkCapable {
		cmds["triggerDeeplink"] = b.triggerDeeplinkCommand
	}
	return cmds
}

// Commands returns the registered command table, for a driving HTTP/CLI
// surface (cmd/wdio-service) to dispatch against by name.
func (b *Browser) Commands() map[string]CommandFunc {
	return b.commands
}

// Dispatch looks up and invokes a registered command by name, the single
// entry point a driving surface needs.
func (b *Browser) Dispatch(ctx context.Context, name string, args []json.RawMessage) (any, error) {
	cmd, ok := b.commands[name]
	if !ok {
		return nil, fmt.Errorf("browser: unknown command %q", name)
	}
	return cmd(ctx, args)
}

func (b *Browser) executeCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("browser: execute requires a script argument")
	}
	var script string
	if err := json.Unmarshal(args[0], &script); err != nil {
		return nil, fmt.Errorf("browser: execute script must be a string: %w", err)
	}
	raw, err := b.executor.Execute(ctx, script, args[1:])
	if err != nil {
		return nil, err
	}
	var result any
	if len(raw) == 0 {
		return nil, nil
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("browser: execute result decode: %w", err)
	}
	return result, nil
}

type mockArgs struct {
	APIName     string `json:"apiName"`
	FuncName    string `json:"funcName"`
	ReturnValue any    `json:"returnValue"`
}

func (b *Browser) mockCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("browser: mock requires apiName/funcName")
	}
	var req mockArgs
	if err := json.Unmarshal(args[0], &req); err != nil {
		return nil, fmt.Errorf("browser: mock args decode: %w", err)
	}
	m := b.mockRegistry.Mock(req.APIName, req.FuncName, nil)
	if req.ReturnValue != nil {
		m.MockReturnValue(req.ReturnValue)
	}
	return m, nil
}

type mockAllArgs struct {
	APIName string `json:"apiName"`
}

func (b *Browser) mockAllCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("browser: mockAll requires apiName")
	}
	var req mockAllArgs
	if err := json.Unmarshal(args[0], &req); err != nil {
		return nil, fmt.Errorf("browser: mockAll args decode: %w", err)
	}
	// This generic command layer has no way to list the target API's members
	// or obtain their real originals, so the mockAll command always returns
	// an error after decoding its arguments. Mocking every member is done by
	// internal/mock.Registry.MockAll, which takes a member lister and the
	// originals and skips non-function members per §4.6.
	return nil, fmt.Errorf("browser: mockAll requires a framework-specific member lister; use mockRegistry.MockAll directly")
}

func (b *Browser) clearAllMocksCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	b.mockRegistry.ClearAllMocks("")
	return nil, nil
}

func (b *Browser) resetAllMocksCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	b.mockRegistry.ResetAllMocks("")
	return nil, nil
}

func (b *Browser) restoreAllMocksCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	b.mockRegistry.RestoreAllMocks("")
	return nil, nil
}

func (b *Browser) isMockFunctionCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	if len(args) == 0 {
		return false, nil
	}
	var probe struct {
		IsMockFunction bool `json:"__isMockFunction"`
	}
	if err := json.Unmarshal(args[0], &probe); err != nil {
		return false, nil
	}
	return probe.IsMockFunction, nil
}

func (b *Browser) triggerDeeplinkCommand(ctx context.Context, args []json.RawMessage) (any, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("browser: triggerDeeplink requires a url argument")
	}
	var rawURL string
	if err := json.Unmarshal(args[0], &rawURL); err != nil {
		return nil, fmt.Errorf("browser: triggerDeeplink url must be a string: %w", err)
	}

	// macOS's `open` dispatches the URL to whichever running instance claims
	// the scheme; there's no way to target one instance by userData dir, so
	// the URL goes through unscoped per §4.9.
	if runtime.GOOS == "darwin" {
		if err := deeplink.Trigger(ctx, rawURL, b.appBinaryPath); err != nil {
			return nil, err
		}
		return nil, nil
	}

	dir, err := b.cachedUserDataDir(ctx)
	if err != nil {
		return nil, fmt.Errorf("browser: resolving userData dir: %w", err)
	}

	scoped, err := deeplink.AppendUserDataDir(rawURL, dir)
	if err != nil {
		return nil, err
	}
	if err := deeplink.Trigger(ctx, scoped, b.appBinaryPath); err != nil {
		return nil, err
	}
	return nil, nil
}

// cachedUserDataDir fetches the app's userData directory once per worker and
// reuses it for every subsequent triggerDeeplink call, per §4.9 ("cache it
// per worker").
func (b *Browser) cachedUserDataDir(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.userDataFetched {
		return b.userDataDir, nil
	}
	if b.fetchUserData == nil {
		return "", fmt.Errorf("no userData fetcher configured")
	}
	dir, err := b.fetchUserData(ctx)
	if err != nil {
		return "", err
	}
	b.userDataDir = dir
	b.userDataFetched = true
	return dir, nil
}
