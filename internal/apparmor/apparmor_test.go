package apparmor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMajorVersion(t *testing.T) {
	cases := map[string]int{
		"6.8.0-40-generic":  6,
		"5.15.0-89-generic": 5,
		"noversion":         0,
		"":                  0,
	}
	for release, want := range cases {
		assert.Equal(t, want, parseMajorVersion(release), release)
	}
}

func TestRestrictionEnabledAtSkipsOldKernels(t *testing.T) {
	enabled, err := restrictionEnabledAt(5, "/does/not/matter")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestRestrictionEnabledAtMissingSysctlIsNotEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apparmor_restrict_unprivileged_userns")
	enabled, err := restrictionEnabledAt(6, path)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestRestrictionEnabledAtReadsSysctlValue(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apparmor_restrict_unprivileged_userns")
	require.NoError(t, os.WriteFile(path, []byte("1\n"), 0o644))

	enabled, err := restrictionEnabledAt(6, path)
	require.NoError(t, err)
	assert.True(t, enabled)
}

func TestRestrictionEnabledAtZeroValueIsNotEnabled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "apparmor_restrict_unprivileged_userns")
	require.NoError(t, os.WriteFile(path, []byte("0\n"), 0o644))

	enabled, err := restrictionEnabledAt(6, path)
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestProfileFileNameReplacesSlashesWithDots(t *testing.T) {
	name := profileFileName("/opt/myapp/bin/myapp")
	assert.Equal(t, "opt.myapp.bin.myapp", name)
}

func TestInstallRejectsModeOff(t *testing.T) {
	_, err := Install("/opt/myapp/bin/myapp", ModeOff)
	assert.Error(t, err)
}

func TestInstallRejectsEmptyMode(t *testing.T) {
	_, err := Install("/opt/myapp/bin/myapp", "")
	assert.Error(t, err)
}

func TestRemoveNoopsOnEmptyPath(t *testing.T) {
	err := Remove("", ModeOn)
	assert.NoError(t, err)
}
