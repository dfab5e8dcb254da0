package logcapture

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSink struct {
	events []LogEvent
}

func (r *recordingSink) Emit(e LogEvent) { r.events = append(r.events, e) }

func TestMinLevelFilterDropsBelowMinimum(t *testing.T) {
	rec := &recordingSink{}
	filtered := MinLevelFilter{Min: LevelError, Next: rec}

	filtered.Emit(LogEvent{Level: LevelWarn, Message: "w"})
	filtered.Emit(LogEvent{Level: LevelInfo, Message: "i"})
	filtered.Emit(LogEvent{Level: LevelDebug, Message: "d"})
	filtered.Emit(LogEvent{Level: LevelTrace, Message: "t"})
	filtered.Emit(LogEvent{Level: LevelError, Message: "e"})

	require.Len(t, rec.events, 1)
	assert.Equal(t, "e", rec.events[0].Message)
}

func TestPipelineFansOutToEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	p := NewPipeline(a, b)
	p.Emit(LogEvent{Message: "x"})
	assert.Len(t, a.events, 1)
	assert.Len(t, b.events, 1)
}

func TestPrefixIncludesInstanceOnlyWhenSet(t *testing.T) {
	e1 := LogEvent{Source: SourceMainProcess}
	assert.Equal(t, "[Framework:MainProcess]", e1.Prefix())

	e2 := LogEvent{Source: SourceRenderer, Instance: "browserA"}
	assert.Equal(t, "[Framework:Renderer:browserA]", e2.Prefix())
}

func TestParseLevelMapsConsoleAPINames(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	_, err = ParseLevel("nonsense")
	assert.Error(t, err)
}

func TestRunnerSinkForwardsWithPrefix(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	sink := NewRunnerSink(logger)

	sink.Emit(LogEvent{Source: SourceBackend, Level: LevelError, Message: "boom"})
	assert.Contains(t, buf.String(), "[Framework:Backend] boom")
}

func TestFileSinkRequiresLogDir(t *testing.T) {
	_, err := NewFileSink("", "20260730")
	assert.Error(t, err)
}

func TestFileSinkAppendsFormattedLines(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "20260730T000000")
	require.NoError(t, err)
	defer sink.Close()

	at := time.Date(2026, 7, 30, 1, 2, 3, 0, time.UTC)
	sink.Emit(LogEvent{Source: SourceFrontend, Level: LevelInfo, Message: "hello", At: at})

	matches, _ := filepath.Glob(filepath.Join(dir, "wdio-*.log"))
	require.Len(t, matches, 1)
	content, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(content), "2026-07-30T01:02:03"))
	assert.True(t, strings.Contains(string(content), "INFO"))
	assert.True(t, strings.Contains(string(content), "[Framework:Frontend] hello"))
}

func TestFileSinkRotatesPastMaxBytes(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "rotate")
	require.NoError(t, err)
	defer sink.Close()
	sink.maxBytes = 64

	for i := 0; i < 10; i++ {
		sink.Emit(LogEvent{Source: SourceBackend, Level: LevelInfo, Message: "filler line of text to exceed threshold"})
	}

	gzMatches, _ := filepath.Glob(filepath.Join(dir, "*.gz"))
	assert.NotEmpty(t, gzMatches, "expected at least one gzip-rotated file once maxBytes was exceeded")
}
