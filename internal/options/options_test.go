package options

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLogLevel(t *testing.T) {
	cases := []struct {
		in   string
		want LogLevel
	}{
		{"", LevelTrace},
		{"trace", LevelTrace},
		{"debug", LevelDebug},
		{"info", LevelInfo},
		{"warn", LevelWarn},
		{"error", LevelError},
	}
	for _, c := range cases {
		got, err := ParseLogLevel(c.in)
		require.NoError(t, err)
		assert.Equal(t, c.want, got)
	}

	_, err := ParseLogLevel("bogus")
	assert.Error(t, err)
}

func TestMergeCapabilityOverridesServiceLevel(t *testing.T) {
	base := Defaults()
	base.AppBinaryPath = "/svc/level/path"
	base.CDPBridgeRetryCount = 5

	override := ServiceOptions{
		AppBinaryPath:       "/capability/level/path",
		CDPBridgeRetryCount: 3,
	}

	merged := Merge(base, override)
	assert.Equal(t, "/capability/level/path", merged.AppBinaryPath)
	assert.Equal(t, 3, merged.CDPBridgeRetryCount)
	// Fields untouched by override retain the base value.
	assert.Equal(t, base.CDPBridgeTimeout, merged.CDPBridgeTimeout)
}

func TestMergeZeroOverrideDoesNotClobberBase(t *testing.T) {
	base := Defaults()
	base.StartTimeout = 45 * time.Second

	merged := Merge(base, ServiceOptions{})
	assert.Equal(t, 45*time.Second, merged.StartTimeout)
}

func TestMergeBooleanMockFlagsAreOrSemantics(t *testing.T) {
	base := ServiceOptions{ClearMocks: true}
	override := ServiceOptions{ResetMocks: true}
	merged := Merge(base, override)
	assert.True(t, merged.ClearMocks)
	assert.True(t, merged.ResetMocks)
	assert.False(t, merged.RestoreMocks)
}

func TestMergeAppArgsConcatenates(t *testing.T) {
	base := ServiceOptions{AppArgs: []string{"--a"}}
	override := ServiceOptions{AppArgs: []string{"--b"}}
	merged := Merge(base, override)
	assert.Equal(t, []string{"--a", "--b"}, merged.AppArgs)
}

func TestMergeEnvOverridesTopOfPrecedence(t *testing.T) {
	opts := Defaults()
	opts.AppBinaryPath = "/capability/path"

	merged := MergeEnv(opts, map[string]string{"WDIO_APP_BINARY_PATH": "/env/path"})
	assert.Equal(t, "/env/path", merged.AppBinaryPath)
}
