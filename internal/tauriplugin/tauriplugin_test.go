package tauriplugin

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	result json.RawMessage
	err    error
}

func (f *fakeEvaluator) Evaluate(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error) {
	return f.result, f.err
}

func TestExecuteReturnsEvaluatorResult(t *testing.T) {
	plugin := NewPlugin(&fakeEvaluator{result: json.RawMessage(`42`)})
	result, err := plugin.Execute(context.Background(), ExecuteRequest{Script: "1+41"})
	require.NoError(t, err)
	assert.Equal(t, "42", string(result))
}

func TestExecuteRejectsNonSerializableResult(t *testing.T) {
	plugin := NewPlugin(&fakeEvaluator{result: json.RawMessage(`not-json`)})
	_, err := plugin.Execute(context.Background(), ExecuteRequest{Script: "x"})
	assert.ErrorIs(t, err, ErrSerialization)
}

func TestDispatchAllOrNothingMock(t *testing.T) {
	plugin := NewPlugin(&fakeEvaluator{})
	called := false
	original := func(ctx context.Context) (json.RawMessage, error) {
		called = true
		return json.RawMessage(`"real"`), nil
	}

	result, err := plugin.Dispatch(context.Background(), "app.getName", original)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, `"real"`, string(result))

	called = false
	plugin.SetMock(SetMockRequest{Command: "app.getName", Config: MockConfig{ReturnValue: json.RawMessage(`"mocked"`)}})
	result, err = plugin.Dispatch(context.Background(), "app.getName", original)
	require.NoError(t, err)
	assert.False(t, called, "original handler must not run once any mock is configured for the command")
	assert.Equal(t, `"mocked"`, string(result))
}

func TestClearAndRestoreMocks(t *testing.T) {
	plugin := NewPlugin(&fakeEvaluator{})
	plugin.SetMock(SetMockRequest{Command: "c", Config: MockConfig{ReturnValue: json.RawMessage(`1`)}})

	_, ok := plugin.GetMock("c")
	require.True(t, ok)

	plugin.ClearMocks()
	_, ok = plugin.GetMock("c")
	assert.False(t, ok)

	plugin.SetMock(SetMockRequest{Command: "c", Config: MockConfig{ReturnValue: json.RawMessage(`2`)}})
	plugin.RestoreMocks()
	_, ok = plugin.GetMock("c")
	assert.False(t, ok)
}

func TestFrontendShimWaitForInit(t *testing.T) {
	plugin := NewPlugin(&fakeEvaluator{result: json.RawMessage(`1`)})
	shim := NewFrontendShim(plugin)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := shim.WaitForInit(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	shim.MarkInitialized()
	assert.NoError(t, shim.WaitForInit(context.Background()))

	// Calling MarkInitialized twice must not panic (sync.Once).
	shim.MarkInitialized()
}

func TestFrontendShimExecuteForwardsToPlugin(t *testing.T) {
	plugin := NewPlugin(&fakeEvaluator{result: json.RawMessage(`{"ok":true}`)})
	shim := NewFrontendShim(plugin)
	result, err := shim.Execute(context.Background(), "script", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}
