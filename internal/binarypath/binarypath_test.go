package binarypath

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/onkernel/wdio-native-driver/internal/platform"
)

func TestResolveForgeLinuxX64Success(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("path templates in this test are linux-specific")
	}
	root := t.TempDir()
	binDir := filepath.Join(root, "out", "MyApp-linux-x64")
	require.NoError(t, os.MkdirAll(binDir, 0o755))
	binPath := filepath.Join(binDir, "MyApp")
	require.NoError(t, os.WriteFile(binPath, []byte("#!/bin/sh\n"), 0o755))

	info := &platform.AppBuildInfo{Tool: platform.Forge, AppName: "MyApp", RootDir: root}
	result := Resolve(root, info, Options{Arch: "amd64", OS: "linux"})

	require.True(t, result.Success)
	assert.Equal(t, binPath, result.BinaryPath)
	require.Len(t, result.Attempts, 1)
	assert.True(t, result.Attempts[0].Valid)
}

func TestResolveEmptyCandidateList(t *testing.T) {
	root := t.TempDir()
	info := &platform.AppBuildInfo{Tool: platform.NoBuildTool, AppName: "MyApp", RootDir: root}
	result := Resolve(root, info, Options{OS: "plan9", Arch: "amd64"})
	assert.False(t, result.Success)
	assert.Empty(t, result.Attempts)
}

func TestResolveDirectoryIsRejected(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("path templates in this test are linux-specific")
	}
	root := t.TempDir()
	binDir := filepath.Join(root, "dist", "linux-unpacked")
	// Create the expected binary path AS A DIRECTORY to trigger IS_DIRECTORY.
	require.NoError(t, os.MkdirAll(filepath.Join(binDir, "MyApp"), 0o755))

	info := &platform.AppBuildInfo{Tool: platform.Builder, AppName: "MyApp", RootDir: root}
	result := Resolve(root, info, Options{OS: "linux", Arch: "amd64"})

	require.False(t, result.Success)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, ErrIsDirectory, result.Attempts[0].Error)
}

func TestResolveMissingCandidateRecordedAsFileNotFound(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("path templates in this test are linux-specific")
	}
	root := t.TempDir()
	// No binary is created; Forge generates one candidate for a given
	// (os, arch) pair, so the attempt log holds that one FILE_NOT_FOUND entry.
	info := &platform.AppBuildInfo{Tool: platform.Forge, AppName: "MyApp", RootDir: root}
	result := Resolve(root, info, Options{OS: "linux", Arch: "amd64"})
	require.False(t, result.Success)
	require.Len(t, result.Attempts, 1)
	assert.Equal(t, ErrFileNotFound, result.Attempts[0].Error)
}

func TestFatalErrorNilOnSuccess(t *testing.T) {
	assert.NoError(t, FatalError(Result{Success: true}))
}

func TestFatalErrorIncludesAttempts(t *testing.T) {
	r := Result{Attempts: []Attempt{{Path: "/a/b", Error: ErrFileNotFound}}}
	err := FatalError(r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/a/b")
}
