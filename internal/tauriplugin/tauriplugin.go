// Package tauriplugin implements C4: the host-side half of the in-app Tauri
// plugin's wire protocol (§6 "Tauri plugin wire format") plus the MockConfig
// registry it exposes, and a frontend shim that stands in for
// window.wdioTauri on the host side (internal/connect uses it as a Tauri
// instance's executor; tests use it in place of a real Tauri webview).
package tauriplugin

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MockConfig is the process-wide registry entry set by `set-mock`.
type MockConfig struct {
	ReturnValue json.RawMessage `json:"return_value"`
}

// Registry is the process-wide command → MockConfig map (§3's MockRegistry).
// Lifetime is the process lifetime; safe for concurrent command dispatch.
type Registry struct {
	mu      sync.RWMutex
	mocks   map[string]MockConfig
	// originals records which commands have ever been mocked; RestoreMocks clears it.
	originals map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{mocks: make(map[string]MockConfig), originals: make(map[string]struct{})}
}

func (r *Registry) Set(command string, cfg MockConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.originals[command] = struct{}{}
	r.mocks[command] = cfg
}

func (r *Registry) Get(command string) (MockConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.mocks[command]
	return cfg, ok
}

// ClearMocks removes mock configs but not knowledge that a command was ever mocked.
func (r *Registry) ClearMocks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mocks = make(map[string]MockConfig)
}

// ResetMocks does the same as ClearMocks: the registry holds only return
// values, so there is no separate implementation to reset.
func (r *Registry) ResetMocks() { r.ClearMocks() }

// RestoreMocks clears mocks and forgets which commands were ever mocked.
func (r *Registry) RestoreMocks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mocks = make(map[string]MockConfig)
	r.originals = make(map[string]struct{})
}

// Evaluator runs a script string inside the frontend webview. The host never
// introspects the script (Design Note "Execute arbitrary code in target
// process") — it is an opaque payload handed to whatever runs inside the app.
type Evaluator interface {
	Evaluate(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error)
}

// ErrSerialization is returned when a script's result cannot be JSON-encoded.
var ErrSerialization = fmt.Errorf("SERIALIZATION_ERROR")

// Plugin is the host-side command dispatcher matching §4.4's five commands.
type Plugin struct {
	registry  *Registry
	evaluator Evaluator
}

func NewPlugin(evaluator Evaluator) *Plugin {
	return &Plugin{registry: NewRegistry(), evaluator: evaluator}
}

func (p *Plugin) Registry() *Registry { return p.registry }

// ExecuteRequest mirrors the {script, args} request inside §6's execute
// envelope; Execute answers it with the JSON-encoded script result or an error.
type ExecuteRequest struct {
	Script string            `json:"script"`
	Args   []json.RawMessage `json:"args"`
}

// Execute hands script and args to the Evaluator unchanged. It does not wrap
// the script, so this layer does not pass the Tauri APIs object as a first
// parameter. The Evaluator's result is returned if it is valid JSON;
// otherwise Execute fails with ErrSerialization.
func (p *Plugin) Execute(ctx context.Context, req ExecuteRequest) (json.RawMessage, error) {
	result, err := p.evaluator.Evaluate(ctx, req.Script, req.Args)
	if err != nil {
		return nil, err
	}
	if !json.Valid(result) {
		return nil, ErrSerialization
	}
	return result, nil
}

// SetMockRequest mirrors §6's set-mock envelope.
type SetMockRequest struct {
	Command string     `json:"command"`
	Config  MockConfig `json:"config"`
}

func (p *Plugin) SetMock(req SetMockRequest) {
	p.registry.Set(req.Command, req.Config)
}

func (p *Plugin) GetMock(command string) (MockConfig, bool) {
	return p.registry.Get(command)
}

func (p *Plugin) ClearMocks()   { p.registry.ClearMocks() }
func (p *Plugin) ResetMocks()   { p.registry.ResetMocks() }
func (p *Plugin) RestoreMocks() { p.registry.RestoreMocks() }

// Dispatch intercepts a named command, consulting the registry first: if a
// mock is configured for command, its return_value is returned without
// invoking original (§4.4 "All-or-nothing" semantics — no partial argument
// matching).
func (p *Plugin) Dispatch(ctx context.Context, command string, original func(ctx context.Context) (json.RawMessage, error)) (json.RawMessage, error) {
	if cfg, ok := p.registry.Get(command); ok {
		return cfg.ReturnValue, nil
	}
	return original(ctx)
}

// FrontendShim stands in for window.wdioTauri on the host side: it forwards
// calls to Plugin the way the real shim forwards to the plugin's commands
// over IPC. connect.Tauri uses it as a Tauri instance's executor, and tests
// use it without a real Tauri webview.
type FrontendShim struct {
	plugin   *Plugin
	initOnce sync.Once
	ready    chan struct{}
}

func NewFrontendShim(plugin *Plugin) *FrontendShim {
	return &FrontendShim{plugin: plugin, ready: make(chan struct{})}
}

// MarkInitialized completes the shim's waitForInit promise exactly once.
func (f *FrontendShim) MarkInitialized() {
	f.initOnce.Do(func() { close(f.ready) })
}

// WaitForInit blocks until MarkInitialized has been called or ctx is done.
func (f *FrontendShim) WaitForInit(ctx context.Context) error {
	select {
	case <-f.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *FrontendShim) Execute(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error) {
	return f.plugin.Execute(ctx, ExecuteRequest{Script: script, Args: args})
}

func (f *FrontendShim) SetMock(command string, cfg MockConfig) { f.plugin.SetMock(SetMockRequest{Command: command, Config: cfg}) }
func (f *FrontendShim) GetMock(command string) (MockConfig, bool) { return f.plugin.GetMock(command) }
func (f *FrontendShim) ClearMocks()                                { f.plugin.ClearMocks() }
func (f *FrontendShim) ResetMocks()                                { f.plugin.ResetMocks() }
func (f *FrontendShim) RestoreMocks()                              { f.plugin.RestoreMocks() }
