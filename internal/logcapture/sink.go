package logcapture

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// RunnerSink forwards each LogEvent to a runner-provided *slog.Logger with
// the "[Framework:Source:Instance?]" prefix from §4.8's test-runner mode.
type RunnerSink struct {
	logger *slog.Logger
}

func NewRunnerSink(logger *slog.Logger) *RunnerSink {
	return &RunnerSink{logger: logger}
}

func (s *RunnerSink) Emit(e LogEvent) {
	msg := e.Prefix() + " " + e.Message
	switch {
	case e.Level >= LevelError:
		s.logger.Error(msg)
	case e.Level >= LevelWarn:
		s.logger.Warn(msg)
	case e.Level >= LevelInfo:
		s.logger.Info(msg)
	default:
		s.logger.Debug(msg)
	}
}

// FileSink appends "{ISO-timestamp} {LEVEL} {prefix}{message}" lines to
// {logDir}/wdio-{timestamp}.log (§4.8's standalone mode), gzip-rotating the
// file once it exceeds maxBytes so long-running standalone sessions don't
// accumulate an unbounded plaintext file.
type FileSink struct {
	mu       sync.Mutex
	path     string
	maxBytes int64
	f        *os.File
	written  int64
}

const defaultFileSinkMaxBytes = 10 * 1024 * 1024 // 10MiB

// NewFileSink opens (creating if needed) {logDir}/wdio-{timestamp}.log.
// Per §4.8, standalone mode requires an explicit logDir; callers must not
// construct a FileSink when logDir is empty — capture is silently disabled
// in that case, handled by the caller choosing not to register a FileSink.
func NewFileSink(logDir, timestamp string) (*FileSink, error) {
	if logDir == "" {
		return nil, fmt.Errorf("logcapture: logDir is required for FileSink")
	}
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logcapture: create logDir: %w", err)
	}
	path := filepath.Join(logDir, fmt.Sprintf("wdio-%s.log", timestamp))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("logcapture: open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("logcapture: stat %s: %w", path, err)
	}
	return &FileSink{path: path, maxBytes: defaultFileSinkMaxBytes, f: f, written: info.Size()}, nil
}

func (s *FileSink) Emit(e LogEvent) {
	line := fmt.Sprintf("%s %s %s%s\n", e.At.UTC().Format("2006-01-02T15:04:05.000Z07:00"), e.Level, e.Prefix(), " "+e.Message)

	s.mu.Lock()
	defer s.mu.Unlock()
	n, err := s.f.WriteString(line)
	if err != nil {
		return
	}
	s.written += int64(n)
	if s.written >= s.maxBytes {
		s.rotateLocked()
	}
}

// rotateLocked closes the current file, gzip-compresses it alongside with a
// ".1.gz" suffix (overwriting any previous rotation), and reopens a fresh
// file at the same path. Errors are swallowed: rotation failure must never
// take down log capture, the worst case is a larger-than-intended file.
func (s *FileSink) rotateLocked() {
	if err := s.f.Close(); err != nil {
		return
	}
	if err := gzipRotate(s.path); err == nil {
		// rotation succeeded; fall through to reopen.
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return
	}
	s.f = f
	s.written = 0
}

func gzipRotate(path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path + ".1.gz")
	if err != nil {
		return err
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
