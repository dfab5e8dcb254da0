// Command wdio-standalone mirrors cmd/chromium-launcher: a small main that
// parses flags/env, resolves the target binary, starts one lifecycle
// session outside any test runner, and on SIGINT/SIGTERM tears it down
// again — the same signal.NotifyContext pattern as cmd/api/main.go, applied
// to internal/standalone instead of an HTTP server.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/onkernel/wdio-native-driver/internal/apparmor"
	"github.com/onkernel/wdio-native-driver/internal/binarypath"
	"github.com/onkernel/wdio-native-driver/internal/browser"
	"github.com/onkernel/wdio-native-driver/internal/connect"
	"github.com/onkernel/wdio-native-driver/internal/driversupervisor"
	"github.com/onkernel/wdio-native-driver/internal/lifecycle"
	"github.com/onkernel/wdio-native-driver/internal/logcapture"
	"github.com/onkernel/wdio-native-driver/internal/options"
	"github.com/onkernel/wdio-native-driver/internal/platform"
	"github.com/onkernel/wdio-native-driver/internal/standalone"
)

func main() {
	projectRoot := flag.String("project-root", ".", "app project directory (package.json / tauri.conf.json lives here)")
	instanceName := flag.String("instance", "", "instance name, empty for single-remote")
	framework := flag.String("framework", "", "\"electron\" or \"tauri\", inferred from the project if empty")
	cdpPort := flag.Int("cdp-port", 9222, "Electron remote debugging port")
	tauriCallback := flag.String("tauri-callback", "", "HTTP callback URL the Tauri frontend shim POSTs evaluate requests to")
	tauriWindows := flag.String("tauri-windows", "main", "comma-separated static window handles for Tauri")
	appBinary := flag.String("app-binary", "", "override the resolved app binary path")
	debug := flag.Bool("debug", false, "resolve debug-build binary paths")
	logDir := flag.String("log-dir", "", "directory to write captured app logs to, empty disables file capture")
	logLevel := flag.String("log-level", "info", "trace|debug|info|warn|error")
	apparmorMode := flag.String("apparmor-mode", string(options.ApparmorOff), "false|true|sudo")
	tauriDriverPath := flag.String("tauri-driver-path", "", "path to a pre-installed tauri-driver binary")
	autoInstallDriver := flag.Bool("auto-install-tauri-driver", false, "install tauri-driver via cargo when it is not on $PATH")
	watch := flag.Bool("watch", false, "re-resolve the app binary whenever the build config file changes")
	flag.Parse()

	slogger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if level, err := options.ParseLogLevel(*logLevel); err == nil {
		slogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevelToSlog(level)}))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	info, err := platform.Detect(*projectRoot)
	if err != nil {
		slogger.Error("build tool detection failed", "err", err)
		os.Exit(1)
	}

	resolvedFramework := lifecycle.FrameworkElectron
	if *framework == "tauri" || (*framework == "" && info.Tool == platform.Tauri) {
		resolvedFramework = lifecycle.FrameworkTauri
	}

	binaryPath := *appBinary
	if binaryPath == "" {
		result := binarypath.Resolve(*projectRoot, info, binarypath.Options{Debug: *debug})
		if !result.Success {
			slogger.Error("app binary resolution failed", "err", binarypath.FatalError(result))
			os.Exit(1)
		}
		binaryPath = result.BinaryPath
	}

	if *watch && info.ConfigPath != "" {
		onChange := func(newInfo *platform.AppBuildInfo) {
			result := binarypath.Resolve(*projectRoot, newInfo, binarypath.Options{Debug: *debug})
			if !result.Success {
				slogger.Warn("app binary re-resolution failed after config change", "err", binarypath.FatalError(result))
				return
			}
			slogger.Info("app binary re-resolved after config change", "binary", result.BinaryPath)
		}
		if err := platform.Watch(ctx, *projectRoot, info.ConfigPath, slogger, onChange); err != nil {
			slogger.Warn("starting config watch failed", "err", err)
		}
	}

	opts := options.Defaults()
	opts.AppBinaryPath = binaryPath
	opts.LogDir = *logDir
	opts.ApparmorAutoInstall = options.ApparmorMode(*apparmorMode)
	opts.TauriDriverPath = *tauriDriverPath
	opts.AutoInstallTauriDriver = *autoInstallDriver

	cfg := lifecycle.InstanceConfig{
		Name:       *instanceName,
		Framework:  resolvedFramework,
		BuildInfo:  info,
		BinaryPath: binaryPath,
		Options:    opts,
	}

	var apparmorProfilePath string
	if opts.ApparmorAutoInstall != options.ApparmorOff && opts.ApparmorAutoInstall != "" {
		if enabled, err := apparmor.RestrictionEnabled(); err != nil {
			slogger.Warn("apparmor restriction probe failed", "err", err)
		} else if enabled {
			path, err := apparmor.Install(binaryPath, apparmor.Mode(opts.ApparmorAutoInstall))
			if err != nil {
				slogger.Warn("apparmor install failed, continuing without profile", "err", err)
			} else {
				apparmorProfilePath = path
			}
		}
	}

	var supervisor *driversupervisor.Supervisor
	if resolvedFramework == lifecycle.FrameworkTauri {
		driverPath, err := resolveTauriDriverPath(ctx, opts)
		if err != nil {
			slogger.Error("tauri-driver unavailable", "err", err)
			os.Exit(1)
		}
		supervisor = driversupervisor.New("tauri-driver", driverPath, []string{"--port", strconv.Itoa(opts.TauriDriverPort)}, func(line string) {
			slogger.Info("tauri-driver", "line", line)
		})
		if err := supervisor.Start(ctx); err != nil {
			slogger.Error("starting tauri-driver failed", "err", err)
			os.Exit(1)
		}
		if err := driversupervisor.WaitHealthy(ctx, opts.TauriDriverPort, opts.StartTimeout); err != nil {
			slogger.Error("tauri-driver did not become healthy", "err", err)
			_ = supervisor.Stop(5 * time.Second)
			os.Exit(1)
		}
	}

	controller := lifecycle.NewController(slogger)
	if apparmorProfilePath != "" {
		controller.SetApparmorProfilePath(apparmorProfilePath)
	}
	executors := connect.NewExecutors()
	electronConnect := connect.Electron(slogger, map[string]connect.ElectronTarget{*instanceName: {CDPPort: *cdpPort}}, executors)
	tauriConnect := connect.Tauri(map[string]connect.TauriTarget{
		*instanceName: {CallbackURL: *tauriCallback, Windows: strings.Split(*tauriWindows, ",")},
	}, executors)

	var session *standalone.Session
	fetchUser := browser.UserDataFetcher(func(ctx context.Context) (string, error) {
		if session == nil {
			return "", fmt.Errorf("wdio-standalone: session not started yet")
		}
		b, ok := session.Browsers[*instanceName]
		if !ok {
			return "", fmt.Errorf("wdio-standalone: no browser for instance %q", *instanceName)
		}
		result, err := b.Dispatch(ctx, "execute", []json.RawMessage{json.RawMessage(`"return electron.app.getPath('userData')"`)})
		if err != nil {
			return "", err
		}
		dir, _ := result.(string)
		return dir, nil
	})

	cap := standalone.Capability{
		Config:    cfg,
		Executor:  connect.Lazy(executors, *instanceName),
		FetchUser: fetchUser,
	}

	session, err = standalone.StartSession(ctx, controller, map[string]string{*instanceName: *projectRoot}, []standalone.Capability{cap}, opts, electronConnect, tauriConnect)
	if err != nil {
		slogger.Error("starting session failed", "err", err)
		if supervisor != nil {
			_ = supervisor.Stop(5 * time.Second)
		}
		os.Exit(1)
	}
	slogger.Info("session ready", "instance", *instanceName, "framework", resolvedFramework, "binary", binaryPath)

	var appCmd *exec.Cmd
	if resolvedFramework == lifecycle.FrameworkTauri && opts.CaptureBackendLogs != "" {
		if inst, ok := controller.Instance(*instanceName); ok {
			var err error
			appCmd, err = launchTauriBackendWithLogCapture(binaryPath, opts.AppArgs, inst.LogPipeline, *instanceName)
			if err != nil {
				slogger.Warn("launching app for backend log capture failed", "err", err)
			}
		}
	}

	<-ctx.Done()
	slogger.Info("shutdown signal received")

	if appCmd != nil && appCmd.Process != nil {
		_ = appCmd.Process.Kill()
	}

	stopDrivers := func(context.Context) error {
		if supervisor == nil {
			return nil
		}
		return supervisor.Stop(5 * time.Second)
	}
	var removeProfile func(string) error
	if apparmorProfilePath != "" {
		removeProfile = func(path string) error { return apparmor.Remove(path, apparmor.ModeOn) }
	}
	if err := standalone.CleanupSession(context.Background(), session, stopDrivers, removeProfile); err != nil {
		slogger.Error("cleanup failed", "err", err)
		os.Exit(1)
	}
}

// launchTauriBackendWithLogCapture spawns the Tauri app binary directly so
// its stdout can be tailed into pipeline, since no other code path in this
// binary owns the app process. The app's own window/CDP-equivalent
// connection (tauriConnect) still happens independently over the frontend
// callback URL; this process handle exists solely to source backend logs.
func launchTauriBackendWithLogCapture(binaryPath string, args []string, pipeline *logcapture.Pipeline, instance string) (*exec.Cmd, error) {
	cmd := exec.Command(binaryPath, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	go logcapture.TailBackendStdout(stdout, pipeline, instance)
	return cmd, nil
}

// resolveTauriDriverPath returns opts.TauriDriverPath when set. Otherwise,
// when auto-install is requested and tauri-driver is not on $PATH, it runs
// `cargo install tauri-driver`; it then requires the platform WebDriver to be
// detected and returns "tauri-driver" to be looked up on $PATH, per §4.5.
func resolveTauriDriverPath(ctx context.Context, opts options.ServiceOptions) (string, error) {
	if opts.TauriDriverPath != "" {
		return opts.TauriDriverPath, nil
	}
	if opts.AutoInstallTauriDriver {
		if _, err := exec.LookPath("tauri-driver"); err != nil {
			if err := driversupervisor.AutoInstall(ctx); err != nil {
				return "", err
			}
		}
	}
	result := driversupervisor.DetectPlatformDriver()
	if !result.Success {
		return "", fmt.Errorf("%s (%s)", result.Error, result.InstallInstructions)
	}
	return "tauri-driver", nil
}

func logLevelToSlog(l options.LogLevel) slog.Level {
	switch l {
	case options.LevelTrace, options.LevelDebug:
		return slog.LevelDebug
	case options.LevelInfo:
		return slog.LevelInfo
	case options.LevelWarn:
		return slog.LevelWarn
	case options.LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
