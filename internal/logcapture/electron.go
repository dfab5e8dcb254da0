package logcapture

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/onkernel/wdio-native-driver/internal/cdp"
)

// consoleAPICalledParams mirrors the CDP Runtime.consoleAPICalled event
// payload's fields actually consumed here: the console method name and the
// serialized argument list.
type consoleAPICalledParams struct {
	Type string `json:"type"`
	Args []struct {
		Value       json.RawMessage `json:"value"`
		Description string          `json:"description"`
	} `json:"args"`
}

// AttachMainProcess enables the Runtime domain on bridge and subscribes to
// Runtime.consoleAPICalled, forwarding each call into pipeline tagged
// SourceMainProcess, per §4.8's Electron main-process capture.
func AttachMainProcess(ctx context.Context, bridge *cdp.Bridge, pipeline *Pipeline, instance string) error {
	if _, err := bridge.Send(ctx, "Runtime.enable", nil); err != nil {
		return fmt.Errorf("logcapture: enable Runtime on main process: %w", err)
	}
	bridge.On("Runtime.consoleAPICalled", func(raw json.RawMessage) {
		emitConsoleEvent(raw, pipeline, SourceMainProcess, instance)
	})
	return nil
}

// AttachRenderer enables the Runtime domain on bridge and subscribes to
// Runtime.consoleAPICalled on that same connection, forwarding each call into
// pipeline tagged SourceRenderer. It does not attach to page targets or open
// per-target CDP sessions, so it sees only the console events delivered on
// bridge's own connection; when AttachMainProcess is attached to the same
// bridge, each such event is forwarded under both sources.
func AttachRenderer(ctx context.Context, bridge *cdp.Bridge, pipeline *Pipeline, instance string) error {
	if _, err := bridge.Send(ctx, "Runtime.enable", nil); err != nil {
		return fmt.Errorf("logcapture: enable Runtime on renderer target: %w", err)
	}
	bridge.On("Runtime.consoleAPICalled", func(raw json.RawMessage) {
		emitConsoleEvent(raw, pipeline, SourceRenderer, instance)
	})
	return nil
}

func emitConsoleEvent(raw json.RawMessage, pipeline *Pipeline, source Source, instance string) {
	var params consoleAPICalledParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return
	}
	level, err := ParseLevel(params.Type)
	if err != nil {
		level = LevelInfo
	}

	parts := make([]string, 0, len(params.Args))
	for _, a := range params.Args {
		if a.Description != "" {
			parts = append(parts, a.Description)
			continue
		}
		parts = append(parts, strings.Trim(string(a.Value), `"`))
	}

	pipeline.Emit(LogEvent{
		Source:   source,
		Level:    level,
		Message:  strings.Join(parts, " "),
		Instance: instance,
		At:       time.Now(),
	})
}
