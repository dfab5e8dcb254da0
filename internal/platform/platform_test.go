package platform

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestDetectNoBuildTool(t *testing.T) {
	root := t.TempDir()
	_, err := Detect(root)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "NO_BUILD_TOOL", cfgErr.Kind)
}

func TestDetectMultipleBuildTools(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "forge.config.js"), "module.exports = {}")
	writeFile(t, filepath.Join(root, "electron-builder.json"), `{"productName":"MyApp"}`)

	_, err := Detect(root)
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "MULTIPLE_BUILD_TOOLS", cfgErr.Kind)
}

func TestDetectForgeViaPackageJSON(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "package.json"), `{"name":"MyApp","config":{"forge":{"packagerConfig":{"name":"MyApp"}}}}`)

	info, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, Forge, info.Tool)
}

func TestDetectBuilderJSONProductName(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "electron-builder.json"), `{"productName":"My App"}`)

	info, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, Builder, info.Tool)
}

func TestDetectTauriConfig(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "src-tauri", "tauri.conf.json"), `{"productName":"My Tauri App"}`)

	info, err := Detect(root)
	require.NoError(t, err)
	assert.Equal(t, Tauri, info.Tool)
}

func TestLinuxKebabCollapsesSpaces(t *testing.T) {
	assert.Equal(t, "my-cool-app", linuxKebab("My   Cool App"))
}

func TestCargoPackageName(t *testing.T) {
	root := t.TempDir()
	cargoPath := filepath.Join(root, "src-tauri", "Cargo.toml")
	writeFile(t, cargoPath, "[package]\nname = \"my-tauri-app\"\nversion = \"0.1.0\"\n")

	name, err := cargoPackageName(cargoPath)
	require.NoError(t, err)
	assert.Equal(t, "my-tauri-app", name)
}
