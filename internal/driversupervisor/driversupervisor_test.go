package driversupervisor

import (
	"context"
	"net"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectPlatformDriverDarwinUnsupported(t *testing.T) {
	if runtime.GOOS != "darwin" {
		t.Skip("darwin-only branch")
	}
	result := DetectPlatformDriver()
	assert.False(t, result.Success)
}

func TestDetectWebKitWebDriverReturnsInstallInstructionsWhenMissing(t *testing.T) {
	result := DetectWebKitWebDriver()
	if result.Success {
		t.Skip("WebKitWebDriver is installed on this host")
	}
	assert.NotEmpty(t, result.Error)
	assert.NotEmpty(t, result.InstallInstructions)
}

func TestDetectPackageManagerReturnsSomeKnownValue(t *testing.T) {
	pm := DetectPackageManager()
	known := map[PackageManager]bool{PMApt: true, PMDnf: true, PMYum: true, PMZypper: true, PMPacman: true, PMApk: true, PMXbps: true}
	assert.True(t, known[pm])
}

func TestWaitHealthySucceedsOnceListening(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	err = WaitHealthy(context.Background(), port, 2*time.Second)
	assert.NoError(t, err)
}

func TestWaitHealthyTimesOutWhenNothingListens(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close() // free the port so nothing is listening

	err = WaitHealthy(context.Background(), port, 200*time.Millisecond)
	assert.Error(t, err)
}
