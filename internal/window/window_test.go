package window

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	windows []Info
	err     error
}

func (f *fakeSource) GetAvailableWindows() ([]Info, error) { return f.windows, f.err }

func TestUpdateActiveHandleKeepsCurrentWhenStillAvailable(t *testing.T) {
	src := &fakeSource{windows: []Info{{Handle: "a"}, {Handle: "b"}}}
	m := NewManager(src)
	m.SetCurrentHandle("b")

	changed, err := m.UpdateActiveHandle()
	require.NoError(t, err)
	assert.False(t, changed)
	h, _ := m.GetCurrentHandle()
	assert.Equal(t, Handle("b"), h)
}

func TestUpdateActiveHandleFallsBackToFirstWhenCurrentGone(t *testing.T) {
	src := &fakeSource{windows: []Info{{Handle: "a"}, {Handle: "b"}}}
	m := NewManager(src)
	m.SetCurrentHandle("stale")

	changed, err := m.UpdateActiveHandle()
	require.NoError(t, err)
	assert.True(t, changed)
	h, _ := m.GetCurrentHandle()
	assert.Equal(t, Handle("a"), h)
}

func TestUpdateActiveHandleFirstCallWithNoPriorHandleCounts(t *testing.T) {
	src := &fakeSource{windows: []Info{{Handle: "a"}}}
	m := NewManager(src)

	changed, err := m.UpdateActiveHandle()
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestUpdateActiveHandleAllWindowsGoneRetainsHandleButInvalid(t *testing.T) {
	src := &fakeSource{windows: []Info{{Handle: "a"}}}
	m := NewManager(src)
	m.UpdateActiveHandle()

	src.windows = nil
	changed, err := m.UpdateActiveHandle()
	require.NoError(t, err)
	assert.False(t, changed)

	h, ok := m.GetCurrentHandle()
	assert.True(t, ok)
	assert.Equal(t, Handle("a"), h)

	valid, err := m.IsHandleValid(h)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestGetWindowInfoReturnsMetadataForOpenHandle(t *testing.T) {
	src := &fakeSource{windows: []Info{{Handle: "a", Type: WindowPage, URL: "https://x", Title: "X"}}}
	m := NewManager(src)
	info, ok, err := m.GetWindowInfo("a")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "X", info.Title)
}

func TestSourceErrorPropagates(t *testing.T) {
	src := &fakeSource{err: errors.New("disconnected")}
	m := NewManager(src)
	_, err := m.UpdateActiveHandle()
	assert.Error(t, err)
}

func TestMultiRemoteWindowIsolationMatchesScenarioE6(t *testing.T) {
	mr := NewMultiRemoteManager()
	srcA := &fakeSource{windows: []Info{{Handle: "winA"}}}
	srcB := &fakeSource{windows: []Info{{Handle: "winB"}}}
	mr.Register("browserA", srcA)
	mr.Register("browserB", srcB)

	changed, err := mr.EnsureAllActiveWindows()
	require.NoError(t, err)
	assert.Equal(t, 2, changed) // both instances pick up their first handle

	// browserA's window closes.
	srcA.windows = nil
	changed, err = mr.EnsureAllActiveWindows()
	require.NoError(t, err)
	assert.Equal(t, 0, changed, "closing browserA's window must not change browserB's handle")

	mB, _ := mr.Get("browserB")
	hB, _ := mB.GetCurrentHandle()
	assert.Equal(t, Handle("winB"), hB)
}

func TestMultiRemoteRegisterReplacesExistingInstanceState(t *testing.T) {
	mr := NewMultiRemoteManager()
	src1 := &fakeSource{windows: []Info{{Handle: "old"}}}
	m1 := mr.Register("app", src1)
	m1.SetCurrentHandle("old")

	src2 := &fakeSource{windows: []Info{{Handle: "new"}}}
	m2 := mr.Register("app", src2)
	h, ok := m2.GetCurrentHandle()
	assert.False(t, ok)
	assert.Empty(t, h)
}
