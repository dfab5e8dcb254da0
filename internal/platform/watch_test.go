package platform

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatchFiresOnChangeOnConfigWrite(t *testing.T) {
	root := t.TempDir()
	tauriConf := filepath.Join(root, "src-tauri", "tauri.conf.json")
	writeFile(t, tauriConf, `{"productName":"MyApp"}`)

	info, err := Detect(root)
	require.NoError(t, err)
	require.Equal(t, tauriConf, info.ConfigPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *AppBuildInfo, 1)
	require.NoError(t, Watch(ctx, root, info.ConfigPath, nil, func(i *AppBuildInfo) {
		changed <- i
	}))

	require.NoError(t, os.WriteFile(tauriConf, []byte(`{"productName":"MyRenamedApp"}`), 0o644))

	select {
	case i := <-changed:
		wantName := "MyRenamedApp"
		if runtime.GOOS == "linux" {
			wantName = "myrenamedapp" // Detect lowercases app names on Linux
		}
		require.Equal(t, wantName, i.AppName)
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called after config write")
	}
}
