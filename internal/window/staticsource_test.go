package window

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSourceReturnsConfiguredWindows(t *testing.T) {
	src := NewStaticSource([]Info{{Handle: "main", Type: WindowPage, Title: "App"}})
	windows, err := src.GetAvailableWindows()
	require.NoError(t, err)
	require.Len(t, windows, 1)
	assert.Equal(t, Handle("main"), windows[0].Handle)
}
