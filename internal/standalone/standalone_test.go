package standalone

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkernel/wdio-native-driver/internal/browser"
	"github.com/onkernel/wdio-native-driver/internal/cdp"
	"github.com/onkernel/wdio-native-driver/internal/lifecycle"
	"github.com/onkernel/wdio-native-driver/internal/options"
	"github.com/onkernel/wdio-native-driver/internal/window"
)

type fakeExecutor struct{}

func (fakeExecutor) Execute(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`null`), nil
}

type fakeWindowSource struct{}

func (fakeWindowSource) GetAvailableWindows() ([]window.Info, error) {
	return []window.Info{{Handle: "w1"}}, nil
}

func writePackageJSON(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"MyApp","config":{"forge":{}}}`), 0o644))
}

func TestStartSessionBuildsBrowserPerCapability(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir)

	controller := lifecycle.NewController(nil)
	electronConnect := func(ctx context.Context, cfg lifecycle.InstanceConfig) (*cdp.Bridge, *window.Manager, error) {
		return nil, window.NewManager(fakeWindowSource{}), nil
	}

	caps := []Capability{{
		Config:   lifecycle.InstanceConfig{Name: "", Framework: lifecycle.FrameworkElectron},
		Executor: fakeExecutor{},
	}}

	sess, err := StartSession(context.Background(), controller, map[string]string{"": dir}, caps, options.ServiceOptions{}, electronConnect, nil)
	require.NoError(t, err)

	b, ok := sess.Browser()
	require.True(t, ok)
	assert.NotNil(t, b)
}

func TestStartSessionConfiguresFileSinkWhenLogDirSet(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir)
	logDir := t.TempDir()

	controller := lifecycle.NewController(nil)
	electronConnect := func(ctx context.Context, cfg lifecycle.InstanceConfig) (*cdp.Bridge, *window.Manager, error) {
		return nil, window.NewManager(fakeWindowSource{}), nil
	}
	caps := []Capability{{
		Config:   lifecycle.InstanceConfig{Name: "", Framework: lifecycle.FrameworkElectron},
		Executor: fakeExecutor{},
	}}

	sess, err := StartSession(context.Background(), controller, map[string]string{"": dir}, caps, options.ServiceOptions{LogDir: logDir}, electronConnect, nil)
	require.NoError(t, err)
	require.NotNil(t, sess.fileSink)

	err = CleanupSession(context.Background(), sess, nil, nil)
	require.NoError(t, err)

	entries, err := os.ReadDir(logDir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestCleanupSessionSuppressesStopDriversError(t *testing.T) {
	dir := t.TempDir()
	writePackageJSON(t, dir)

	controller := lifecycle.NewController(nil)
	electronConnect := func(ctx context.Context, cfg lifecycle.InstanceConfig) (*cdp.Bridge, *window.Manager, error) {
		return nil, window.NewManager(fakeWindowSource{}), nil
	}
	caps := []Capability{{
		Config:   lifecycle.InstanceConfig{Name: "", Framework: lifecycle.FrameworkElectron},
		Executor: fakeExecutor{},
	}}
	sess, err := StartSession(context.Background(), controller, map[string]string{"": dir}, caps, options.ServiceOptions{}, electronConnect, nil)
	require.NoError(t, err)

	err = CleanupSession(context.Background(), sess, func(ctx context.Context) error {
		return errors.New("driver stop failed")
	}, nil)
	require.NoError(t, err, "onComplete suppresses stopDrivers errors after logging")
	assert.Equal(t, lifecycle.StateFinished, controller.State())
}

var _ = browser.Executor(fakeExecutor{})
