// Package cdp implements C3: the Chrome DevTools Protocol bridge to an
// Electron main process, grounded on the teacher's lib/webmcp.Bridge and
// lib/devtoolsproxy.UpstreamManager (retry/backoff + single websocket reader
// dispatching to a pending-call map).
package cdp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"

	retry "github.com/avast/retry-go/v5"
)

// State is the bridge's connection state machine. Transitions only move
// forward; reconnecting after Closed requires a new Bridge.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateOpen
	StateClosing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ErrTimeout and ErrCanceled are the two typed rejection reasons for
// in-flight requests described in §4.3 and §7.
var (
	ErrTimeout  = fmt.Errorf("TIMEOUT")
	ErrCanceled = fmt.Errorf("CANCELED")
)

// ConnectOptions configures the startup retry loop.
type ConnectOptions struct {
	Timeout      time.Duration // per-request timeout once open
	WaitInterval time.Duration
	RetryCount   int
}

// inspectorTarget is one entry from the /json (or /json/list) endpoint.
type inspectorTarget struct {
	Type                 string `json:"type"`
	WebSocketDebuggerURL string `json:"webSocketDebuggerUrl"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type frame struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *rpcError       `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

type pendingRequest struct {
	resultCh chan json.RawMessage
	errCh    chan error
}

// Bridge is a CDP connection to one Electron main process inspector.
type Bridge struct {
	logger *slog.Logger
	opts   ConnectOptions

	state atomic.Int32

	nextID atomic.Int64

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[int64]pendingRequest
	handlers map[string][]func(json.RawMessage)

	writeMu sync.Mutex // serializes writes per §4.3's "single in-flight message queue"

	stopCh chan struct{}
	once   sync.Once
}

// DiscoverWebSocketURL polls http://127.0.0.1:<port>/json/list up to
// opts.RetryCount times, opts.WaitInterval apart, and
// returns the first Electron main-process inspector target, or the first
// target if none match the main-process indicator (§4.3 "Tie-break").
func DiscoverWebSocketURL(ctx context.Context, port int, opts ConnectOptions) (string, error) {
	var wsURL string
	attempts := opts.RetryCount
	if attempts <= 0 {
		attempts = 1
	}
	interval := opts.WaitInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}

	err := retry.New(
		retry.Attempts(uint(attempts)),
		retry.Delay(interval),
		retry.DelayType(retry.FixedDelay),
		retry.Context(ctx),
	).Do(func() error {
		targets, err := fetchTargets(ctx, port)
		if err != nil {
			return err
		}
		if len(targets) == 0 {
			return fmt.Errorf("no inspector targets yet")
		}
		wsURL = pickMainProcessTarget(targets)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("devtools inspector not available on port %d: %w", port, err)
	}
	return wsURL, nil
}

func fetchTargets(ctx context.Context, port int) ([]inspectorTarget, error) {
	url := fmt.Sprintf("http://127.0.0.1:%d/json/list", port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inspector returned status %d", resp.StatusCode)
	}
	var targets []inspectorTarget
	if err := json.NewDecoder(resp.Body).Decode(&targets); err != nil {
		return nil, err
	}
	return targets, nil
}

// pickMainProcessTarget chooses the first target whose type indicates the
// Electron main process ("node"), else falls back to the first target.
func pickMainProcessTarget(targets []inspectorTarget) string {
	for _, t := range targets {
		if t.Type == "node" {
			return t.WebSocketDebuggerURL
		}
	}
	return targets[0].WebSocketDebuggerURL
}

// Connect dials wsURL and starts the reader goroutine. On failure the caller
// should treat this as non-fatal per §4.3 and continue with main-process
// features disabled.
func Connect(ctx context.Context, wsURL string, opts ConnectOptions, logger *slog.Logger) (*Bridge, error) {
	b := &Bridge{
		logger:   logger,
		opts:     opts,
		pending:  make(map[int64]pendingRequest),
		handlers: make(map[string][]func(json.RawMessage)),
		stopCh:   make(chan struct{}),
	}
	b.state.Store(int32(StateConnecting))

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		b.state.Store(int32(StateClosed))
		return nil, fmt.Errorf("cdp dial failed: %w", err)
	}
	conn.SetReadLimit(100 * 1024 * 1024)
	b.conn = conn
	b.state.Store(int32(StateOpen))

	go b.readLoop(ctx)
	return b, nil
}

// State returns the bridge's current connection state.
func (b *Bridge) State() State {
	return State(b.state.Load())
}

// Send writes a CDP request and blocks until the matching response frame
// arrives, the bridge's timeout elapses, or the bridge closes.
func (b *Bridge) Send(ctx context.Context, method string, params any) (json.RawMessage, error) {
	if b.State() != StateOpen {
		return nil, fmt.Errorf("cdp bridge not open (state=%s)", b.State())
	}

	id := b.nextID.Add(1)
	var paramsRaw json.RawMessage
	if params != nil {
		raw, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("marshal params: %w", err)
		}
		paramsRaw = raw
	}
	data, err := json.Marshal(frame{ID: id, Method: method, Params: paramsRaw})
	if err != nil {
		return nil, fmt.Errorf("marshal frame: %w", err)
	}

	resultCh := make(chan json.RawMessage, 1)
	errCh := make(chan error, 1)
	b.mu.Lock()
	b.pending[id] = pendingRequest{resultCh: resultCh, errCh: errCh}
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.pending, id)
		b.mu.Unlock()
	}()

	b.writeMu.Lock()
	writeErr := b.conn.Write(ctx, websocket.MessageText, data)
	b.writeMu.Unlock()
	if writeErr != nil {
		return nil, fmt.Errorf("cdp write failed: %w", writeErr)
	}

	timeout := b.opts.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	select {
	case res := <-resultCh:
		return res, nil
	case err := <-errCh:
		return nil, err
	case <-time.After(timeout):
		return nil, ErrTimeout
	case <-b.stopCh:
		return nil, ErrCanceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// On subscribes handler to unsolicited CDP events matching eventName.
func (b *Bridge) On(eventName string, handler func(json.RawMessage)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Off removes all handlers previously registered for eventName.
func (b *Bridge) Off(eventName string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.handlers, eventName)
}

// Close transitions the bridge to closing, rejects all pending requests with
// ErrCanceled, then closes the underlying connection.
func (b *Bridge) Close() {
	b.once.Do(func() {
		b.state.Store(int32(StateClosing))
		close(b.stopCh)

		b.mu.Lock()
		pending := b.pending
		b.pending = make(map[int64]pendingRequest)
		conn := b.conn
		b.mu.Unlock()

		for _, p := range pending {
			select {
			case p.errCh <- ErrCanceled:
			default:
			}
		}
		if conn != nil {
			_ = conn.Close(websocket.StatusNormalClosure, "bridge closing")
		}
		b.state.Store(int32(StateClosed))
	})
}

func (b *Bridge) readLoop(ctx context.Context) {
	for {
		select {
		case <-b.stopCh:
			return
		default:
		}

		_, data, err := b.conn.Read(ctx)
		if err != nil {
			select {
			case <-b.stopCh:
			default:
				b.logger.Warn("cdp read error", slog.String("err", err.Error()))
				b.Close()
			}
			return
		}

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			b.logger.Warn("cdp unmarshal error", slog.String("err", err.Error()))
			continue
		}

		if f.ID != 0 {
			b.mu.Lock()
			p, ok := b.pending[f.ID]
			b.mu.Unlock()
			if !ok {
				continue
			}
			if f.Error != nil {
				p.errCh <- fmt.Errorf("cdp error %d: %s", f.Error.Code, f.Error.Message)
			} else {
				p.resultCh <- f.Result
			}
			continue
		}

		if f.Method != "" {
			b.mu.Lock()
			hs := append([]func(json.RawMessage){}, b.handlers[f.Method]...)
			b.mu.Unlock()
			for _, h := range hs {
				h(f.Params)
			}
		}
	}
}
