package logcapture

import (
	"bufio"
	"io"
	"regexp"
	"strings"
	"time"
)

// backendLinePattern matches a typical Rust log-framework line: a level word
// followed by the message, e.g. "INFO starting backend" or "[2026-07-30][INFO] ready".
var backendLinePattern = regexp.MustCompile(`(?i)\b(trace|debug|info|warn|warning|error)\b[:\]]?\s*(.*)$`)

// TailBackendStdout reads lines from r (tauri-driver/app stdout) until EOF or
// the reader errors, parsing each into a LogEvent tagged SourceBackend, per
// §4.8's Tauri backend capture. Lines that don't match a recognizable level
// are forwarded at LevelInfo rather than dropped, since any line making it to
// stdout is presumed worth surfacing.
func TailBackendStdout(r io.Reader, pipeline *Pipeline, instance string) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		level, message := parseBackendLine(line)
		pipeline.Emit(LogEvent{
			Source:   SourceBackend,
			Level:    level,
			Message:  message,
			Instance: instance,
			At:       time.Now(),
		})
	}
}

func parseBackendLine(line string) (Level, string) {
	m := backendLinePattern.FindStringSubmatch(line)
	if m == nil {
		return LevelInfo, line
	}
	level, err := ParseLevel(normalizeLevelWord(m[1]))
	if err != nil {
		return LevelInfo, line
	}
	message := m[2]
	if message == "" {
		message = line
	}
	return level, message
}

func normalizeLevelWord(w string) string {
	return strings.ToLower(w)
}

// ForwardFrontendCall emits one console.{log,debug,info,warn,error} call
// relayed from the Tauri frontend into pipeline, tagged SourceFrontend, per
// §4.8's Tauri frontend capture. An unrecognized method is logged at
// LevelInfo. cmd/wdio-service's console endpoint calls it directly, without
// a round-trip through backend stdout.
func ForwardFrontendCall(method, message string, pipeline *Pipeline, instance string) {
	level, err := ParseLevel(method)
	if err != nil {
		level = LevelInfo
	}
	pipeline.Emit(LogEvent{
		Source:   SourceFrontend,
		Level:    level,
		Message:  message,
		Instance: instance,
		At:       time.Now(),
	})
}
