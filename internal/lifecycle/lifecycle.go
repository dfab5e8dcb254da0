// Package lifecycle implements C10: the onPrepare/before/beforeTest/
// beforeCommand/afterCommand/after/onComplete state machine from §4.10,
// composing C1-C9 per instance and, for multiremote, per instance name.
// Exposed as a tiny HTTP surface by cmd/wdio-service, following
// cmd/api/main.go's router wiring — the idiomatic Go substitute for "a
// WebDriverIO service object with lifecycle methods" since Go has no
// equivalent to a require()-time service hook.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/onkernel/wdio-native-driver/internal/cdp"
	"github.com/onkernel/wdio-native-driver/internal/logcapture"
	"github.com/onkernel/wdio-native-driver/internal/mock"
	"github.com/onkernel/wdio-native-driver/internal/options"
	"github.com/onkernel/wdio-native-driver/internal/platform"
	"github.com/onkernel/wdio-native-driver/internal/tauriplugin"
	"github.com/onkernel/wdio-native-driver/internal/window"
)

// State is the lifecycle state machine from §4.10: init → prepared → running
// → finished. Calling a hook out of order is a programmer error, not a
// recoverable runtime condition: OnPrepare and Before panic when called in
// the wrong state. The other hooks do not check the state.
type State int32

const (
	StateInit State = iota
	StatePrepared
	StateRunning
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePrepared:
		return "prepared"
	case StateRunning:
		return "running"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Framework distinguishes Electron from Tauri instances, since their before()
// wiring (CDP bridge vs. plugin waitForInit) differs per §4.10 step 1.
type Framework string

const (
	FrameworkElectron Framework = "electron"
	FrameworkTauri    Framework = "tauri"
)

// InstanceConfig names one capability's launch target — single-remote runs
// have exactly one, keyed "" (the default instance).
type InstanceConfig struct {
	Name       string
	Framework  Framework
	BuildInfo  *platform.AppBuildInfo
	BinaryPath string
	Options    options.ServiceOptions
}

// InstanceState is §3's per-instance MultiRemoteState entry: disjoint state
// for window handles, mocks, and log capture per instance.
type InstanceState struct {
	Name           string
	Framework      Framework
	WindowManager  *window.Manager
	MockRegistry   *mock.Registry
	LogPipeline    *logcapture.Pipeline
	CDPBridge      *cdp.Bridge       // nil for Tauri, or for Electron if connect failed
	TauriPlugin    *tauriplugin.Plugin // nil for Electron
	CDPUnavailable bool              // true if Electron CDP connect failed (non-fatal per §7)
}

// ElectronConnector attempts to connect the CDP bridge for one Electron
// instance. Injected so tests can fake it without a real binary.
type ElectronConnector func(ctx context.Context, cfg InstanceConfig) (*cdp.Bridge, *window.Manager, error)

// TauriConnector awaits the plugin's frontend shim init for one Tauri
// instance. Injected for the same reason.
type TauriConnector func(ctx context.Context, cfg InstanceConfig) (*tauriplugin.Plugin, *window.Manager, error)

// Controller owns the full lifecycle state machine and every instance's
// disjoint per-instance state.
type Controller struct {
	mu sync.RWMutex

	state     State
	logger    *slog.Logger
	instances map[string]*InstanceState
	multiWin  *window.MultiRemoteManager

	buildInfo     map[string]*platform.AppBuildInfo
	apparmorPath  string // non-empty if onPrepare installed a profile for this run
}

func NewController(logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		state:     StateInit,
		logger:    logger,
		instances: make(map[string]*InstanceState),
		multiWin:  window.NewMultiRemoteManager(),
		buildInfo: make(map[string]*platform.AppBuildInfo),
	}
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// OnPrepare runs once per test-runner invocation per §4.10: resolves
// AppBuildInfo for each instance's project root. Binary resolution and
// AppArmor installation are driven separately by the caller (cmd/wdio-service)
// since they need OS-specific inputs this package intentionally doesn't own;
// OnPrepare's job is strictly the init→prepared transition plus recording
// build info for later hooks to consult.
func (c *Controller) OnPrepare(ctx context.Context, projectRoots map[string]string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInit {
		panic(fmt.Sprintf("lifecycle: OnPrepare called in state %s, expected init", c.state))
	}

	for name, root := range projectRoots {
		info, err := platform.Detect(root)
		if err != nil {
			return fmt.Errorf("lifecycle: onPrepare build detection for %q: %w", instanceLabel(name), err)
		}
		c.buildInfo[name] = info
	}
	c.state = StatePrepared
	return nil
}

// SetApparmorProfilePath records that onPrepare installed an AppArmor
// profile, so OnComplete knows to remove it.
func (c *Controller) SetApparmorProfilePath(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apparmorPath = path
}

// BuildInfo returns the AppBuildInfo resolved in OnPrepare for instanceName.
func (c *Controller) BuildInfo(instanceName string) (*platform.AppBuildInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	info, ok := c.buildInfo[instanceName]
	return info, ok
}

// Before runs once per worker per §4.10: for each instance, builds a
// WindowManager, MockRegistry, and LogPipeline; for Electron attempts a CDP
// connect (non-fatal per §7's error table — failure sets CDPUnavailable and
// is logged, not returned); for Tauri awaits the plugin's waitForInit.
// Electron/Tauri connectors are injected so no real app process is required
// to exercise this method in tests.
func (c *Controller) Before(
	ctx context.Context,
	cfgs []InstanceConfig,
	electronConnect ElectronConnector,
	tauriConnect TauriConnector,
) error {
	c.mu.Lock()
	if c.state != StatePrepared {
		c.mu.Unlock()
		panic(fmt.Sprintf("lifecycle: Before called in state %s, expected prepared", c.state))
	}
	c.mu.Unlock()

	for _, cfg := range cfgs {
		inst := &InstanceState{
			Name:         cfg.Name,
			Framework:    cfg.Framework,
			MockRegistry: mock.NewRegistry(),
			LogPipeline:  logcapture.NewPipeline(),
		}

		switch cfg.Framework {
		case FrameworkElectron:
			bridge, wm, err := electronConnect(ctx, cfg)
			if err != nil {
				c.logger.Warn("CDP bridge connect failed; continuing without main-process features",
					"instance", instanceLabel(cfg.Name), "err", err)
				inst.CDPUnavailable = true
			} else {
				inst.CDPBridge = bridge
				inst.WindowManager = wm
				c.attachElectronLogCapture(ctx, cfg, bridge, inst.LogPipeline)
			}
		case FrameworkTauri:
			plugin, wm, err := tauriConnect(ctx, cfg)
			if err != nil {
				c.logger.Warn("tauri plugin waitForInit failed", "instance", instanceLabel(cfg.Name), "err", err)
			} else {
				inst.TauriPlugin = plugin
				inst.WindowManager = wm
			}
			if cfg.Options.CaptureBackendLogs != "" {
				// Tauri backend stdout is only capturable by whatever owns the app
				// process; a runner-driven instance connects over the frontend
				// callback URL without ever spawning (or holding a pipe to) the
				// app itself, so there's nothing here to tail. Standalone sessions
				// that launch the app directly (internal/standalone, cmd/wdio-standalone)
				// attach logcapture.TailBackendStdout to the process they start.
				c.logger.Debug("captureBackendLogs requested but no owned process stdout is available for this instance",
					"instance", instanceLabel(cfg.Name))
			}
		default:
			return fmt.Errorf("lifecycle: instance %q has unknown framework %q", instanceLabel(cfg.Name), cfg.Framework)
		}

		if inst.WindowManager != nil {
			c.mu.Lock()
			c.multiWin.RegisterManager(cfg.Name, inst.WindowManager)
			c.mu.Unlock()
		}

		c.mu.Lock()
		c.instances[cfg.Name] = inst
		c.mu.Unlock()
	}

	c.mu.Lock()
	c.state = StateRunning
	c.mu.Unlock()
	return nil
}

func instanceLabel(name string) string {
	if name == "" {
		return "default"
	}
	return name
}

// Instance returns the per-instance state for name ("" for the default
// single-remote instance).
func (c *Controller) Instance(name string) (*InstanceState, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	inst, ok := c.instances[name]
	return inst, ok
}

// Instances returns every registered instance, for fan-out operations like
// BeforeTest.
func (c *Controller) Instances() []*InstanceState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*InstanceState, 0, len(c.instances))
	for _, inst := range c.instances {
		out = append(out, inst)
	}
	return out
}

// BeforeTest applies the mock auto-hooks configured in opts (clear/reset/
// restore) to every instance's MockRegistry, per §4.10.
func (c *Controller) BeforeTest(opts options.ServiceOptions) {
	for _, inst := range c.Instances() {
		switch {
		case opts.RestoreMocks:
			inst.MockRegistry.RestoreAllMocks("")
		case opts.ResetMocks:
			inst.MockRegistry.ResetAllMocks("")
		case opts.ClearMocks:
			inst.MockRegistry.ClearAllMocks("")
		}
	}
}

// BeforeCommand and AfterCommand both reconcile window focus transparently
// around every driver command per §4.10; errors are logged, not fatal, per
// §7's per-test-hook failure policy.
func (c *Controller) BeforeCommand(ctx context.Context) {
	c.reconcileWindows()
}

func (c *Controller) AfterCommand(ctx context.Context) {
	c.reconcileWindows()
}

func (c *Controller) reconcileWindows() {
	if _, err := c.multiWin.EnsureAllActiveWindows(); err != nil {
		c.logger.Debug("ensureAllActiveWindows failed", "err", err)
	}
}

// After stops log capture and closes CDP bridges for every instance, per
// §4.10. Errors are suppressed after logging, per §7's after/onComplete
// failure policy.
func (c *Controller) After(ctx context.Context) {
	for _, inst := range c.Instances() {
		if inst.LogPipeline != nil {
			inst.LogPipeline.Close()
		}
		if inst.CDPBridge != nil {
			inst.CDPBridge.Close()
		}
	}
}

// attachElectronLogCapture wires the main-process and renderer console
// producers onto inst's pipeline per cfg.Options' capture toggles. Each
// toggle is a minimum level string: that producer's events below it are
// dropped, an unrecognized level forwards everything, and empty disables
// that producer entirely per §4.8.
func (c *Controller) attachElectronLogCapture(ctx context.Context, cfg InstanceConfig, bridge *cdp.Bridge, pipeline *logcapture.Pipeline) {
	filtered := func(minLevel string) *logcapture.Pipeline {
		lvl, err := logcapture.ParseLevel(minLevel)
		if err != nil {
			return pipeline
		}
		return logcapture.NewPipeline(logcapture.MinLevelFilter{Min: lvl, Next: pipeline})
	}
	if cfg.Options.CaptureMainProcessLogs != "" {
		if err := logcapture.AttachMainProcess(ctx, bridge, filtered(cfg.Options.CaptureMainProcessLogs), cfg.Name); err != nil {
			c.logger.Warn("attaching main-process log capture failed", "instance", instanceLabel(cfg.Name), "err", err)
		}
	}
	if cfg.Options.CaptureRendererLogs != "" {
		if err := logcapture.AttachRenderer(ctx, bridge, filtered(cfg.Options.CaptureRendererLogs), cfg.Name); err != nil {
			c.logger.Warn("attaching renderer log capture failed", "instance", instanceLabel(cfg.Name), "err", err)
		}
	}
}

// OnComplete stops external drivers and removes any AppArmor profile
// installed for this run, per §4.10. stopDrivers is injected so this package
// doesn't need to own process supervision directly; failures are logged and
// suppressed, never returned, per §7.
func (c *Controller) OnComplete(ctx context.Context, stopDrivers func(context.Context) error, removeApparmorProfile func(path string) error) {
	if stopDrivers != nil {
		if err := stopDrivers(ctx); err != nil {
			c.logger.Warn("onComplete: stopping drivers failed", "err", err)
		}
	}

	c.mu.Lock()
	path := c.apparmorPath
	c.mu.Unlock()
	if path != "" && removeApparmorProfile != nil {
		if err := removeApparmorProfile(path); err != nil {
			c.logger.Warn("onComplete: removing AppArmor profile failed", "path", path, "err", err)
		}
	}

	c.mu.Lock()
	c.state = StateFinished
	c.mu.Unlock()
}
