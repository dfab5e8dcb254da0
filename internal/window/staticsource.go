package window

// StaticSource reports a fixed window set, for drivers with no dynamic
// window-discovery API — Tauri webviews are typically single-window, unlike
// Electron's dynamically creatable renderer targets that cdp.WindowSource
// discovers live via Target.getTargets.
type StaticSource struct {
	windows []Info
}

func NewStaticSource(windows []Info) *StaticSource {
	return &StaticSource{windows: windows}
}

func (s *StaticSource) GetAvailableWindows() ([]Info, error) {
	return s.windows, nil
}
