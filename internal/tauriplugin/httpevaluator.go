package tauriplugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// HTTPEvaluator implements Evaluator by POSTing the script and args to a
// callback URL owned by whatever process holds the real WebDriver session
// against the Tauri webview, and decoding its JSON response. This is the
// Tauri-side counterpart to C3's WebSocket transport: Electron's CDP bridge
// dials the app directly, but Tauri's IPC lives inside the app's own
// webview, so the host process has to call back out to whoever bridges it
// instead of dialing in.
type HTTPEvaluator struct {
	Client *http.Client
	URL    string
}

type httpEvaluatorRequest struct {
	Script string            `json:"script"`
	Args   []json.RawMessage `json:"args"`
}

type httpEvaluatorResponse struct {
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

func (e *HTTPEvaluator) Evaluate(ctx context.Context, script string, args []json.RawMessage) (json.RawMessage, error) {
	client := e.Client
	if client == nil {
		client = http.DefaultClient
	}

	body, err := json.Marshal(httpEvaluatorRequest{Script: script, Args: args})
	if err != nil {
		return nil, fmt.Errorf("tauriplugin: marshal evaluate request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tauriplugin: build evaluate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tauriplugin: evaluate callback failed: %w", err)
	}
	defer resp.Body.Close()

	var decoded httpEvaluatorResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("tauriplugin: decode evaluate response: %w", err)
	}
	if decoded.Error != "" {
		return nil, fmt.Errorf("tauriplugin: evaluate error: %s", decoded.Error)
	}
	return decoded.Result, nil
}
