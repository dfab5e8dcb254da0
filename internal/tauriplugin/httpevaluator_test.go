package tauriplugin

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPEvaluatorDecodesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req httpEvaluatorRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "return 1+1", req.Script)
		_ = json.NewEncoder(w).Encode(httpEvaluatorResponse{Result: json.RawMessage(`2`)})
	}))
	defer srv.Close()

	eval := &HTTPEvaluator{URL: srv.URL}
	result, err := eval.Evaluate(context.Background(), "return 1+1", nil)
	require.NoError(t, err)
	assert.Equal(t, "2", string(result))
}

func TestHTTPEvaluatorSurfacesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(httpEvaluatorResponse{Error: "ReferenceError: x is not defined"})
	}))
	defer srv.Close()

	eval := &HTTPEvaluator{URL: srv.URL}
	_, err := eval.Evaluate(context.Background(), "x()", nil)
	assert.ErrorContains(t, err, "ReferenceError")
}
