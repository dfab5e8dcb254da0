// Package window implements C7: tracking driver window handles and picking
// the "active" one, grounded on the teacher's lib/devtoolsproxy upstream
// selection policy (first-match-wins over a discovered target set) adapted
// to the "keep current if still valid" rule from §4.7.
package window

import (
	"sync"

	"github.com/samber/lo"
)

// Handle is an opaque window identifier supplied by the underlying driver.
type Handle string

// WindowType distinguishes ordinary pages from background/webview targets.
type WindowType string

const (
	WindowPage       WindowType = "page"
	WindowBackground WindowType = "background"
)

// Info is the metadata the driver reports for one window.
type Info struct {
	Handle Handle
	Type   WindowType
	URL    string
	Title  string
}

// Source is the sole abstract operation concrete drivers implement: list the
// windows currently open. cdp.WindowSource (Electron) and StaticSource
// (Tauri) implement it.
type Source interface {
	GetAvailableWindows() ([]Info, error)
}

// Manager implements the policy from §4.7 on top of a Source: keep the
// current handle if it is still present, otherwise fall back to the first
// available window.
type Manager struct {
	mu      sync.Mutex
	source  Source
	current Handle
	hasSet  bool
}

func NewManager(source Source) *Manager {
	return &Manager{source: source}
}

// GetCurrentHandle returns the last handle set, even if it is no longer
// valid — callers must check IsHandleValid separately.
func (m *Manager) GetCurrentHandle() (Handle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current, m.hasSet
}

// SetCurrentHandle pins the manager's notion of "current" without
// validating it against the live window set.
func (m *Manager) SetCurrentHandle(h Handle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = h
	m.hasSet = true
}

// IsHandleValid reports whether h is among the windows the source currently
// reports.
func (m *Manager) IsHandleValid(h Handle) (bool, error) {
	windows, err := m.source.GetAvailableWindows()
	if err != nil {
		return false, err
	}
	handles := lo.Map(windows, func(w Info, _ int) Handle { return w.Handle })
	return lo.Contains(handles, h), nil
}

// GetWindowInfo returns the Info for h if it is currently open.
func (m *Manager) GetWindowInfo(h Handle) (Info, bool, error) {
	windows, err := m.source.GetAvailableWindows()
	if err != nil {
		return Info{}, false, err
	}
	for _, w := range windows {
		if w.Handle == h {
			return w, true, nil
		}
	}
	return Info{}, false, nil
}

// GetActiveHandle returns the current handle after reconciling it against
// the live window set, without reporting whether it changed. Most callers
// that need the delta should use UpdateActiveHandle instead.
func (m *Manager) GetActiveHandle() (Handle, error) {
	h, _, err := m.reconcile()
	return h, err
}

// UpdateActiveHandle applies the §4.7 policy: if the current handle is still
// in the available set, keep it unchanged (no reordering); otherwise fall
// back to the first available window. Returns true if the current handle
// changed as a result. If no windows are available, the current handle is
// retained in state (so GetCurrentHandle still returns it) but is invalid.
func (m *Manager) UpdateActiveHandle() (bool, error) {
	_, changed, err := m.reconcile()
	return changed, err
}

func (m *Manager) reconcile() (Handle, bool, error) {
	windows, err := m.source.GetAvailableWindows()
	if err != nil {
		return "", false, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasSet {
		handles := lo.Map(windows, func(w Info, _ int) Handle { return w.Handle })
		if lo.Contains(handles, m.current) {
			return m.current, false, nil
		}
	}

	if len(windows) == 0 {
		// All windows gone: current handle (if any) stays in state but is invalid.
		return m.current, false, nil
	}

	prevHandle, prevHasSet := m.current, m.hasSet
	m.current = windows[0].Handle
	m.hasSet = true
	changed := !prevHasSet || prevHandle != m.current
	return m.current, changed, nil
}
