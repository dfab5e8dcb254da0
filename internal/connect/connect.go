// Package connect builds the lifecycle.ElectronConnector/TauriConnector
// closures shared by cmd/wdio-service and cmd/wdio-standalone, so the two
// entry points don't each reimplement "how do I actually reach a running
// Electron/Tauri instance" — grounded on internal/cdp (C3) and
// internal/tauriplugin (C4)'s transports, generalized into one place per
// entry point that needs them.
package connect

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/onkernel/wdio-native-driver/internal/browser"
	"github.com/onkernel/wdio-native-driver/internal/cdp"
	"github.com/onkernel/wdio-native-driver/internal/lifecycle"
	"github.com/onkernel/wdio-native-driver/internal/tauriplugin"
	"github.com/onkernel/wdio-native-driver/internal/window"
)

// ElectronTarget names how to reach one Electron instance's CDP inspector.
type ElectronTarget struct {
	CDPPort int
}

// TauriTarget names how to reach one Tauri instance's frontend shim.
type TauriTarget struct {
	CallbackURL string
	Windows     []string
}

// Executors collects the browser.Executor built for each connected instance,
// keyed by instance name, so a caller can hand them to browser.New once
// Before() returns.
type Executors struct {
	m map[string]browser.Executor
}

func NewExecutors() *Executors { return &Executors{m: make(map[string]browser.Executor)} }

func (e *Executors) Get(name string) (browser.Executor, bool) {
	ex, ok := e.m[name]
	return ex, ok
}

// lazyExecutor defers to an Executors accumulator that is still being
// populated at construction time: callers that must hand a browser.Executor
// to something built before controller.Before runs (and thus before the
// connector closures have populated the accumulator) can pass this instead
// and rely on Execute being called only afterwards.
type lazyExecutor struct {
	executors *Executors
	name      string
}

// Lazy returns a browser.Executor that resolves the real executor for name
// out of executors on first use, for callers assembling instance
// capabilities before Before() has run the connectors that populate it.
func Lazy(executors *Executors, name string) browser.Executor {
	return &lazyExecutor{executors: executors, name: name}
}

func (l *lazyExecutor) Execute(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error) {
	ex, ok := l.executors.Get(l.name)
	if !ok {
		return nil, fmt.Errorf("connect: no executor connected yet for instance %q", l.name)
	}
	return ex.Execute(ctx, script, args)
}

// Electron returns a lifecycle.ElectronConnector that discovers and dials
// the instance's CDP inspector, builds a CDP-backed window.Source, and
// records a CDPExecutor for later use as the instance's browser.Executor.
func Electron(logger *slog.Logger, targets map[string]ElectronTarget, executors *Executors) lifecycle.ElectronConnector {
	return func(ctx context.Context, cfg lifecycle.InstanceConfig) (*cdp.Bridge, *window.Manager, error) {
		target, ok := targets[cfg.Name]
		if !ok {
			return nil, nil, fmt.Errorf("connect: no CDP target configured for instance %q", cfg.Name)
		}
		opts := cdp.ConnectOptions{
			Timeout:      nonZeroDuration(cfg.Options.CDPBridgeTimeout, 5*time.Second),
			WaitInterval: nonZeroDuration(cfg.Options.CDPBridgeWaitInterval, 100*time.Millisecond),
			RetryCount:   nonZeroInt(cfg.Options.CDPBridgeRetryCount, 10),
		}
		wsURL, err := cdp.DiscoverWebSocketURL(ctx, target.CDPPort, opts)
		if err != nil {
			return nil, nil, err
		}
		bridge, err := cdp.Connect(ctx, wsURL, opts, logger)
		if err != nil {
			return nil, nil, err
		}
		wm := window.NewManager(cdp.NewWindowSource(ctx, bridge))
		executors.m[cfg.Name] = &CDPExecutor{Bridge: bridge}
		return bridge, wm, nil
	}
}

// Tauri returns a lifecycle.TauriConnector backed by an HTTP callback
// evaluator and a static window set, per §4.7's Tauri generalization
// documented in DESIGN.md.
func Tauri(targets map[string]TauriTarget, executors *Executors) lifecycle.TauriConnector {
	return func(ctx context.Context, cfg lifecycle.InstanceConfig) (*tauriplugin.Plugin, *window.Manager, error) {
		target, ok := targets[cfg.Name]
		if !ok {
			return nil, nil, fmt.Errorf("connect: no Tauri callback configured for instance %q", cfg.Name)
		}
		evaluator := &tauriplugin.HTTPEvaluator{URL: target.CallbackURL}
		plugin := tauriplugin.NewPlugin(evaluator)
		shim := tauriplugin.NewFrontendShim(plugin)
		shim.MarkInitialized()

		handles := target.Windows
		if len(handles) == 0 {
			handles = []string{"main"}
		}
		infos := make([]window.Info, 0, len(handles))
		for _, h := range handles {
			infos = append(infos, window.Info{Handle: window.Handle(h), Type: window.WindowPage})
		}
		wm := window.NewManager(window.NewStaticSource(infos))
		executors.m[cfg.Name] = shim
		return plugin, wm, nil
	}
}

func nonZeroDuration(v, fallback time.Duration) time.Duration {
	if v == 0 {
		return fallback
	}
	return v
}

func nonZeroInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}

// CDPExecutor adapts a *cdp.Bridge's Runtime.evaluate into browser.Executor,
// wrapping the script in an IIFE so args bind positionally — the same
// "(function(){...}).apply(...)" shape lib/webmcp's bridge used to invoke
// arbitrary main-process functions.
type CDPExecutor struct {
	Bridge *cdp.Bridge
}

type evaluateParams struct {
	Expression    string `json:"expression"`
	ReturnByValue bool   `json:"returnByValue"`
	AwaitPromise  bool   `json:"awaitPromise"`
}

type evaluateResult struct {
	Result struct {
		Value json.RawMessage `json:"value"`
	} `json:"result"`
	ExceptionDetails *struct {
		Text string `json:"text"`
	} `json:"exceptionDetails,omitempty"`
}

func (e *CDPExecutor) Execute(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error) {
	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil, err
	}
	expr := fmt.Sprintf("(function(){ %s })(...%s)", script, argsJSON)
	raw, err := e.Bridge.Send(ctx, "Runtime.evaluate", evaluateParams{Expression: expr, ReturnByValue: true, AwaitPromise: true})
	if err != nil {
		return nil, err
	}
	var result evaluateResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("connect: decode Runtime.evaluate result: %w", err)
	}
	if result.ExceptionDetails != nil {
		return nil, fmt.Errorf("connect: script threw: %s", result.ExceptionDetails.Text)
	}
	return result.Result.Value, nil
}
