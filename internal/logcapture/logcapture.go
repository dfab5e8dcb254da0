// Package logcapture implements C8: a single LogEvent pipe fed by two kinds
// of producer (Electron CDP console events, Tauri stdout/frontend-shim
// calls) and drained by a Sink, grounded on the teacher's
// devtoolsproxy.WebSocketProxyHandler "one pipe, two producers" shape.
package logcapture

import (
	"fmt"
	"sync"
	"time"
)

// Source identifies which half of the app produced a LogEvent.
type Source string

const (
	SourceMainProcess Source = "MainProcess"
	SourceRenderer    Source = "Renderer"
	SourceBackend     Source = "Backend"
	SourceFrontend    Source = "Frontend"
)

// Level is a console log severity, ordered trace<debug<info<warn<error.
type Level int

const (
	LevelTrace Level = iota
	LevelDebug
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "UNKNOWN"
}

// ParseLevel maps a console-API method name or framework level word onto a Level.
func ParseLevel(s string) (Level, error) {
	switch s {
	case "trace":
		return LevelTrace, nil
	case "debug":
		return LevelDebug, nil
	case "log", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return 0, fmt.Errorf("logcapture: unrecognized level %q", s)
	}
}

// LogEvent is the single shape every producer funnels into, per §4.8.
type LogEvent struct {
	Source   Source
	Level    Level
	Message  string
	Instance string // multiremote instance name, empty outside multiremote
	At       time.Time
}

// Prefix renders the "[Framework:Source:Instance?]" tag used by RunnerSink.
func (e LogEvent) Prefix() string {
	if e.Instance == "" {
		return fmt.Sprintf("[Framework:%s]", e.Source)
	}
	return fmt.Sprintf("[Framework:%s:%s]", e.Source, e.Instance)
}

// Sink is the downstream consumer of captured log events.
type Sink interface {
	Emit(LogEvent)
}

// MinLevelFilter wraps a Sink, dropping events below Min whatever their
// source, per §4.8's level filtering rule.
type MinLevelFilter struct {
	Min  Level
	Next Sink
}

func (f MinLevelFilter) Emit(e LogEvent) {
	if e.Level < f.Min {
		return
	}
	f.Next.Emit(e)
}

// Pipeline fans a single LogEvent out to every registered sink and applies no
// level filtering itself. Per-producer minimum levels come from a
// MinLevelFilter placed in front of the pipeline, as lifecycle's Electron log
// capture does for each producer it attaches.
type Pipeline struct {
	mu     sync.Mutex
	sinks  []Sink
	closed bool
}

func NewPipeline(sinks ...Sink) *Pipeline {
	return &Pipeline{sinks: sinks}
}

func (p *Pipeline) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

func (p *Pipeline) Emit(e LogEvent) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	sinks := p.sinks
	p.mu.Unlock()

	for _, s := range sinks {
		s.Emit(e)
	}
}

// Close stops the pipeline from forwarding further events, called once a
// worker's instance is torn down (lifecycle.Controller.After) so a producer
// goroutine that outlives the CDP bridge or app process it was reading from
// can't write into a sink (e.g. a closed FileSink) after cleanup.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}
