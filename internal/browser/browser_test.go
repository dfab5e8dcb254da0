package browser

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkernel/wdio-native-driver/internal/mock"
)

type fakeExecutor struct {
	result json.RawMessage
	err    error
	script string
}

func (f *fakeExecutor) Execute(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error) {
	f.script = script
	return f.result, f.err
}

func jsonArg(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestExecuteCommandDecodesResult(t *testing.T) {
	exec := &fakeExecutor{result: json.RawMessage(`{"ok":true}`)}
	b := New(exec, mock.NewRegistry(), false, nil, "")

	out, err := b.Dispatch(context.Background(), "execute", []json.RawMessage{jsonArg(t, "return 1")})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, out)
	assert.Equal(t, "return 1", exec.script)
}

func TestExecuteCommandRequiresScriptArg(t *testing.T) {
	b := New(&fakeExecutor{}, mock.NewRegistry(), false, nil, "")
	_, err := b.Dispatch(context.Background(), "execute", nil)
	assert.Error(t, err)
}

func TestMockCommandInstallsConfiguredReturnValue(t *testing.T) {
	b := New(&fakeExecutor{}, mock.NewRegistry(), false, nil, "")
	out, err := b.Dispatch(context.Background(), "mock", []json.RawMessage{
		jsonArg(t, mockArgs{APIName: "app", FuncName: "getName", ReturnValue: "kernel"}),
	})
	require.NoError(t, err)
	m := out.(*mock.Mock)
	result, err := m.Invoke(nil)
	require.NoError(t, err)
	assert.Equal(t, "kernel", result)
}

func TestClearAllMocksDelegatesToRegistry(t *testing.T) {
	reg := mock.NewRegistry()
	b := New(&fakeExecutor{}, reg, false, nil, "")

	m := reg.Mock("app", "getName", nil)
	m.MockReturnValue("kernel")
	m.Invoke(nil)
	require.Len(t, m.Calls(), 1)

	_, err := b.Dispatch(context.Background(), "clearAllMocks", nil)
	require.NoError(t, err)
	assert.Empty(t, m.Calls())
}

func TestIsMockFunctionCommand(t *testing.T) {
	b := New(&fakeExecutor{}, mock.NewRegistry(), false, nil, "")

	out, err := b.Dispatch(context.Background(), "isMockFunction", []json.RawMessage{
		jsonArg(t, map[string]any{"__isMockFunction": true}),
	})
	require.NoError(t, err)
	assert.Equal(t, true, out)

	out, err = b.Dispatch(context.Background(), "isMockFunction", []json.RawMessage{
		jsonArg(t, map[string]any{}),
	})
	require.NoError(t, err)
	assert.Equal(t, false, out)
}

func TestTriggerDeeplinkNotRegisteredForTauri(t *testing.T) {
	b := New(&fakeExecutor{}, mock.NewRegistry(), false, nil, "")
	_, err := b.Dispatch(context.Background(), "triggerDeeplink", []json.RawMessage{jsonArg(t, "myapp://open")})
	assert.Error(t, err)
}

func TestTriggerDeeplinkRejectsInvalidProtocol(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("darwin never fetches userData; covered by TestTriggerDeeplinkDarwinSkipsUserDataDir")
	}
	fetchCalled := false
	fetch := func(ctx context.Context) (string, error) {
		fetchCalled = true
		return `C:\Users\t\AppData`, nil
	}
	b := New(&fakeExecutor{}, mock.NewRegistry(), true, fetch, "")

	_, err := b.Dispatch(context.Background(), "triggerDeeplink", []json.RawMessage{jsonArg(t, "https://example.com")})
	assert.Error(t, err)
	assert.True(t, fetchCalled, "userData dir is fetched before validating the target URL")
}

func TestTriggerDeeplinkDarwinSkipsUserDataDir(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("darwin-only deeplink behavior")
	}
	fetchCalled := false
	fetch := func(ctx context.Context) (string, error) {
		fetchCalled = true
		return "/Users/t/Library/Application Support/myapp", nil
	}
	b := New(&fakeExecutor{}, mock.NewRegistry(), true, fetch, "")

	// An invalid scheme is rejected by deeplink.Trigger's own Validate call
	// before any command is spawned, so this also exercises the "no userData
	// fetch on darwin" path without actually launching `open`.
	_, err := b.Dispatch(context.Background(), "triggerDeeplink", []json.RawMessage{jsonArg(t, "https://example.com")})
	assert.Error(t, err)
	assert.False(t, fetchCalled, "darwin identifies the instance by bundle id, not userData dir")
}

func TestCachedUserDataDirFetchedOnce(t *testing.T) {
	calls := 0
	fetch := func(ctx context.Context) (string, error) {
		calls++
		return "/tmp/userdata", nil
	}
	b := New(&fakeExecutor{}, mock.NewRegistry(), true, fetch, "")

	dir1, err := b.cachedUserDataDir(context.Background())
	require.NoError(t, err)
	dir2, err := b.cachedUserDataDir(context.Background())
	require.NoError(t, err)

	assert.Equal(t, dir1, dir2)
	assert.Equal(t, 1, calls)
}
