package cdp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/onkernel/wdio-native-driver/internal/window"
)

// targetInfo is one entry in Target.getTargets' targetInfos array.
type targetInfo struct {
	TargetID string `json:"targetId"`
	Type     string `json:"type"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

type getTargetsResult struct {
	TargetInfos []targetInfo `json:"targetInfos"`
}

// WindowSource adapts a Bridge into window.Source by calling CDP's
// Target.getTargets and reporting every "page" target as a window, per
// §4.7's "getAvailableWindows is the sole abstract operation subclasses
// implement" — this is that subclass for Electron.
type WindowSource struct {
	bridge *Bridge
	ctx    context.Context
}

// NewWindowSource builds a window.Source backed by bridge. ctx bounds every
// Target.getTargets call this source makes.
func NewWindowSource(ctx context.Context, bridge *Bridge) *WindowSource {
	return &WindowSource{bridge: bridge, ctx: ctx}
}

func (s *WindowSource) GetAvailableWindows() ([]window.Info, error) {
	raw, err := s.bridge.Send(s.ctx, "Target.getTargets", nil)
	if err != nil {
		return nil, fmt.Errorf("cdp: Target.getTargets: %w", err)
	}
	var result getTargetsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("cdp: decode Target.getTargets result: %w", err)
	}

	windows := make([]window.Info, 0, len(result.TargetInfos))
	for _, t := range result.TargetInfos {
		if t.Type != "page" {
			continue
		}
		windows = append(windows, window.Info{
			Handle: window.Handle(t.TargetID),
			Type:   window.WindowPage,
			URL:    t.URL,
			Title:  t.Title,
		})
	}
	return windows, nil
}
