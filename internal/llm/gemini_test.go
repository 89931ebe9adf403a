package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func geminiServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(ts.Close)
	return ts
}

func writeGeminiText(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": text}},
				},
			},
		},
		"usageMetadata": map[string]any{"promptTokenCount": 300, "candidatesTokenCount": 80, "totalTokenCount": 380},
	})
	require.NoError(t, err)
}

func writeGeminiError(w http.ResponseWriter, code int, status, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": message, "status": status},
	})
}

func newTestGemini(baseURL, credential string) *GeminiAnalyzer {
	return NewGeminiAnalyzer(GeminiOpts{
		BaseURL:    baseURL,
		Credential: credential,
		Timeout:    5 * time.Second,
		Retry:      RetryPolicy{MaxAttempts: 2, Delay: time.Millisecond, RetryIf: RetryAll},
	})
}

func TestGeminiAnalyzer_Success(t *testing.T) {
	ts := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/"+DefaultGeminiModel+":generateContent"), r.URL.Path)
		assert.Equal(t, "gm-key", r.Header.Get("x-goog-api-key"))
		writeGeminiText(t, w, "```json\n"+validContent+"\n```")
	})

	g := newTestGemini(ts.URL, "gm-key")
	result, err := g.Analyze(context.Background(), []byte("img"))
	require.NoError(t, err)

	assert.Equal(t, "Vintage Lamp", result.Name)
	assert.Equal(t, ConditionGood, result.Condition)
}

func TestGeminiAnalyzer_MissingCredential(t *testing.T) {
	var calls atomic.Int32
	ts := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	g := newTestGemini(ts.URL, "")
	_, err := g.Analyze(context.Background(), []byte("img"))

	assert.True(t, errors.Is(err, ErrCredentialMissing))
	assert.Equal(t, int32(0), calls.Load())
}

func TestGeminiAnalyzer_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		code    int
		status  string
		message string
		want    error
	}{
		{"rate limited", http.StatusTooManyRequests, "RESOURCE_EXHAUSTED", "Quota exceeded", ErrRateLimited},
		{"bad key", http.StatusBadRequest, "INVALID_ARGUMENT", "API key not valid. Please pass a valid API key.", ErrInvalidCredential},
		{"forbidden", http.StatusForbidden, "PERMISSION_DENIED", "Permission denied", ErrInvalidCredential},
		{"internal", http.StatusInternalServerError, "INTERNAL", "Internal error", &Error{Kind: KindServerError, StatusCode: 500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			ts := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				writeGeminiError(w, tt.code, tt.status, tt.message)
			})

			g := newTestGemini(ts.URL, "gm-key")
			_, err := g.Analyze(context.Background(), []byte("img"))

			assert.True(t, errors.Is(err, tt.want), "got %v", err)
			assert.Equal(t, int32(2), calls.Load())
		})
	}
}

func TestGeminiAnalyzer_EmptyText(t *testing.T) {
	ts := geminiServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	})

	g := newTestGemini(ts.URL, "gm-key")
	_, err := g.Analyze(context.Background(), []byte("img"))
	assert.True(t, errors.Is(err, ErrInvalidResponseFormat))
}

func TestClassifyGeminiError_Transport(t *testing.T) {
	err := classifyGeminiError(errors.New("dial tcp: connection refused"))
	assert.Equal(t, KindNetwork, KindOf(err))
}
