// Package options defines ServiceOptions (§3) and the merge rules the
// lifecycle controller applies before a worker starts.
package options

import (
	"fmt"
	"time"
)

// LogLevel is one of the five capture-filter levels in increasing severity order.
type LogLevel int

const (
	LevelTrace LogLevel = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

func ParseLogLevel(s string) (LogLevel, error) {
	switch s {
	case "", "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "info":
		return LevelInfo, nil
	case "warn":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("unknown log level %q", s)
	}
}

func (l LogLevel) String() string {
	switch l {
	case LevelTrace:
		return "trace"
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ApparmorMode mirrors the three-valued apparmorAutoInstall option.
type ApparmorMode string

const (
	ApparmorOff    ApparmorMode = "false"
	ApparmorOn     ApparmorMode = "true"
	ApparmorSudo   ApparmorMode = "sudo"
	apparmorUnset  ApparmorMode = ""
)

// ServiceOptions is the merged, immutable-per-worker option set described in §3.
// JSON tags match the wire shape of a capability's `wdio:<framework>ServiceOptions` block.
type ServiceOptions struct {
	// Launch
	AppBinaryPath string   `json:"appBinaryPath,omitempty"`
	AppEntryPoint string   `json:"appEntryPoint,omitempty"` // Electron only
	AppArgs       []string `json:"appArgs,omitempty"`

	// Timeouts
	CDPBridgeTimeout       time.Duration `json:"cdpBridgeTimeout,omitempty"`
	CDPBridgeWaitInterval  time.Duration `json:"cdpBridgeWaitInterval,omitempty"`
	CDPBridgeRetryCount    int           `json:"cdpBridgeRetryCount,omitempty"`
	CommandTimeout         time.Duration `json:"commandTimeout,omitempty"`
	StartTimeout           time.Duration `json:"startTimeout,omitempty"`

	// Mock behavior
	ClearMocks   bool `json:"clearMocks,omitempty"`
	ResetMocks   bool `json:"resetMocks,omitempty"`
	RestoreMocks bool `json:"restoreMocks,omitempty"`

	// Log capture
	CaptureMainProcessLogs string `json:"captureMainProcessLogs,omitempty"` // min level, "" = disabled
	CaptureRendererLogs    string `json:"captureRendererLogs,omitempty"`
	CaptureBackendLogs     string `json:"captureBackendLogs,omitempty"`
	CaptureFrontendLogs    string `json:"captureFrontendLogs,omitempty"`
	LogDir                 string `json:"logDir,omitempty"` // standalone only

	// Driver (Tauri)
	TauriDriverPort       int    `json:"tauriDriverPort,omitempty"`
	TauriDriverPath       string `json:"tauriDriverPath,omitempty"`
	AutoInstallTauriDriver bool  `json:"autoInstallTauriDriver,omitempty"`

	// Linux
	ApparmorAutoInstall ApparmorMode `json:"apparmorAutoInstall,omitempty"`
}

// Defaults returns the baseline ServiceOptions applied before any merge.
func Defaults() ServiceOptions {
	return ServiceOptions{
		CDPBridgeTimeout:      5 * time.Second,
		CDPBridgeWaitInterval: 100 * time.Millisecond,
		CDPBridgeRetryCount:   10,
		CommandTimeout:        10 * time.Second,
		StartTimeout:          30 * time.Second,
		TauriDriverPort:       4444,
	}
}

// Merge applies override on top of base, lowest-to-highest precedence:
// service-level options merged with capability-level options. Zero-valued
// fields in override do not clobber base; non-zero fields win, except that
// override's AppArgs are appended to base's and the booleans are ORed.
func Merge(base, override ServiceOptions) ServiceOptions {
	out := base

	if override.AppBinaryPath != "" {
		out.AppBinaryPath = override.AppBinaryPath
	}
	if override.AppEntryPoint != "" {
		out.AppEntryPoint = override.AppEntryPoint
	}
	if len(override.AppArgs) > 0 {
		out.AppArgs = append(append([]string{}, base.AppArgs...), override.AppArgs...)
	}
	if override.CDPBridgeTimeout != 0 {
		out.CDPBridgeTimeout = override.CDPBridgeTimeout
	}
	if override.CDPBridgeWaitInterval != 0 {
		out.CDPBridgeWaitInterval = override.CDPBridgeWaitInterval
	}
	if override.CDPBridgeRetryCount != 0 {
		out.CDPBridgeRetryCount = override.CDPBridgeRetryCount
	}
	if override.CommandTimeout != 0 {
		out.CommandTimeout = override.CommandTimeout
	}
	if override.StartTimeout != 0 {
		out.StartTimeout = override.StartTimeout
	}
	// Booleans are applied with OR semantics: a capability opting in to a
	// stricter mock-reset policy should never be silently downgraded by the
	// service-level default.
	out.ClearMocks = base.ClearMocks || override.ClearMocks
	out.ResetMocks = base.ResetMocks || override.ResetMocks
	out.RestoreMocks = base.RestoreMocks || override.RestoreMocks

	if override.CaptureMainProcessLogs != "" {
		out.CaptureMainProcessLogs = override.CaptureMainProcessLogs
	}
	if override.CaptureRendererLogs != "" {
		out.CaptureRendererLogs = override.CaptureRendererLogs
	}
	if override.CaptureBackendLogs != "" {
		out.CaptureBackendLogs = override.CaptureBackendLogs
	}
	if override.CaptureFrontendLogs != "" {
		out.CaptureFrontendLogs = override.CaptureFrontendLogs
	}
	if override.LogDir != "" {
		out.LogDir = override.LogDir
	}
	if override.TauriDriverPort != 0 {
		out.TauriDriverPort = override.TauriDriverPort
	}
	if override.TauriDriverPath != "" {
		out.TauriDriverPath = override.TauriDriverPath
	}
	out.AutoInstallTauriDriver = base.AutoInstallTauriDriver || override.AutoInstallTauriDriver
	if override.ApparmorAutoInstall != apparmorUnset {
		out.ApparmorAutoInstall = override.ApparmorAutoInstall
	}

	return out
}

// MergeEnv applies environment-derived overrides, the highest-precedence layer.
func MergeEnv(opts ServiceOptions, env map[string]string) ServiceOptions {
	if v, ok := env["WDIO_APP_BINARY_PATH"]; ok && v != "" {
		opts.AppBinaryPath = v
	}
	if v, ok := env["WDIO_LOG_DIR"]; ok && v != "" {
		opts.LogDir = v
	}
	return opts
}
