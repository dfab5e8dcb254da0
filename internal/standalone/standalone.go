// Package standalone implements C11: running a single Electron/Tauri
// session outside a wdio test runner, for scripts/tools that just want a
// Browser handle without a full suite around it. It reuses
// internal/lifecycle.Controller for the prepare+before sequence rather than
// duplicating it, per §4.11 ("perform the same prepare+before sequence the
// runner would"), grounded on cmd/chromium-launcher's "one binary, one
// session, clean teardown" shape generalized from process-replace to a
// library call a Go program can embed.
package standalone

import (
	"context"
	"fmt"
	"time"

	"github.com/onkernel/wdio-native-driver/internal/browser"
	"github.com/onkernel/wdio-native-driver/internal/lifecycle"
	"github.com/onkernel/wdio-native-driver/internal/logcapture"
	"github.com/onkernel/wdio-native-driver/internal/options"
)

// Capability names one instance to start, mirroring a wdio capability entry
// with its ServiceOptions block already resolved.
type Capability struct {
	Config     lifecycle.InstanceConfig
	Executor   browser.Executor
	FetchUser  browser.UserDataFetcher // nil for Tauri instances
}

// Session is the handle startSession returns: one Browser per instance plus
// the lifecycle Controller and file sink needed to tear it all down again.
type Session struct {
	Controller *lifecycle.Controller
	Browsers   map[string]*browser.Browser
	fileSink   *logcapture.FileSink
}

// Browser returns the default (single-remote) instance's Browser, the
// common case for standalone scripts that aren't using multiremote.
func (s *Session) Browser() (*browser.Browser, bool) {
	b, ok := s.Browsers[""]
	return b, ok
}

// StartSession performs onPrepare + before for every capability and returns
// the resulting Session, per §4.11. projectRoots maps instance name to the
// project directory platform.Detect should run against. Only
// globalOpts.LogDir is read here; each capability's cfg.Options is passed to
// the controller as given, with no merge against globalOpts.
func StartSession(
	ctx context.Context,
	controller *lifecycle.Controller,
	projectRoots map[string]string,
	caps []Capability,
	globalOpts options.ServiceOptions,
	electronConnect lifecycle.ElectronConnector,
	tauriConnect lifecycle.TauriConnector,
) (*Session, error) {
	if err := controller.OnPrepare(ctx, projectRoots); err != nil {
		return nil, fmt.Errorf("standalone: onPrepare: %w", err)
	}

	cfgs := make([]lifecycle.InstanceConfig, 0, len(caps))
	for _, c := range caps {
		cfgs = append(cfgs, c.Config)
	}
	if err := controller.Before(ctx, cfgs, electronConnect, tauriConnect); err != nil {
		return nil, fmt.Errorf("standalone: before: %w", err)
	}

	sess := &Session{Controller: controller, Browsers: make(map[string]*browser.Browser, len(caps))}

	if globalOpts.LogDir != "" {
		sink, err := logcapture.NewFileSink(globalOpts.LogDir, timestamp())
		if err != nil {
			return nil, fmt.Errorf("standalone: creating log file sink: %w", err)
		}
		sess.fileSink = sink
		for _, inst := range controller.Instances() {
			inst.LogPipeline.AddSink(sink)
		}
	}

	for _, c := range caps {
		inst, ok := controller.Instance(c.Config.Name)
		if !ok {
			return nil, fmt.Errorf("standalone: instance %q missing after before()", c.Config.Name)
		}
		deeplinkCapable := c.Config.Framework == lifecycle.FrameworkElectron
		sess.Browsers[c.Config.Name] = browser.New(c.Executor, inst.MockRegistry, deeplinkCapable, c.FetchUser, c.Config.BinaryPath)
	}

	return sess, nil
}

// CleanupSession runs after + onComplete and closes the file log sink, per
// §4.11. stopDrivers/removeApparmorProfile are forwarded to onComplete
// unchanged; errors from either are logged and suppressed there, never
// returned here.
func CleanupSession(ctx context.Context, sess *Session, stopDrivers func(context.Context) error, removeApparmorProfile func(string) error) error {
	sess.Controller.After(ctx)
	sess.Controller.OnComplete(ctx, stopDrivers, removeApparmorProfile)

	if sess.fileSink != nil {
		return sess.fileSink.Close()
	}
	return nil
}

// timestamp is overridable in tests; production code calls the real clock
// exactly once per StartSession, matching the {logDir}/wdio-{timestamp}.log
// naming rule from §4.8.
var timestamp = func() string {
	return time.Now().UTC().Format("20060102T150405Z")
}
