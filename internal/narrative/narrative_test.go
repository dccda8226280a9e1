package narrative

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/huangsam/busfactor/internal/contract"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chatServer answers every chat completion with reply and records the last prompt.
func chatServer(t *testing.T, status int, reply string, lastPrompt *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body.Model)
		if lastPrompt != nil && len(body.Messages) > 0 {
			*lastPrompt = body.Messages[len(body.Messages)-1].Content
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"rate limited","type":"rate_limit"}}`))
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"model":  "test-model",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": reply},
				"finish_reason": "stop",
			}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newClient(srv *httptest.Server) contract.Narrator {
	return New(contract.NarrativeConfig{
		APIKey:  "test-key",
		BaseURL: srv.URL + "/v1",
		Model:   "test-model",
		Timeout: time.Second,
	})
}

func TestNewWithoutKeyIsNoop(t *testing.T) {
	n := New(contract.NarrativeConfig{})
	assert.False(t, n.Enabled())
	_, err := n.Summarize(context.Background(), contract.NarrativeRequest{Subject: "project"})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = n.Recommend(context.Background(), contract.NarrativeRequest{})
	assert.ErrorIs(t, err, ErrDisabled)
	_, err = n.Label(context.Background(), []string{"a.go"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestSummarize(t *testing.T) {
	var prompt string
	srv := chatServer(t, http.StatusOK, "  A compact service owned by two people.  ", &prompt)
	n := newClient(srv)
	require.True(t, n.Enabled())

	text, err := n.Summarize(context.Background(), contract.NarrativeRequest{
		Subject: "project",
		Facts:   map[string]any{"bus_factor": 1},
	})
	require.NoError(t, err)
	assert.Equal(t, "A compact service owned by two people.", text)
	assert.Contains(t, prompt, "summary of this project")
	assert.Contains(t, prompt, `{"bus_factor":1}`)
}

func TestRecommend(t *testing.T) {
	srv := chatServer(t, http.StatusOK, "Here you go:\n- Rotate on-call\n2. Write a design doc\n\n* Pair on billing", nil)
	lines, err := newClient(srv).Recommend(context.Background(), contract.NarrativeRequest{Subject: "project"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Here you go:", "Rotate on-call", "Write a design doc", "Pair on billing"}, lines)
}

func TestLabel(t *testing.T) {
	var prompt string
	srv := chatServer(t, http.StatusOK, "\"Payment processing.\"", &prompt)
	label, err := newClient(srv).Label(context.Background(), []string{"billing/pay.go", "billing/refund.go"})
	require.NoError(t, err)
	assert.Equal(t, "Payment processing", label)
	assert.Contains(t, prompt, "billing/refund.go")
}

func TestServiceError(t *testing.T) {
	srv := chatServer(t, http.StatusTooManyRequests, "", nil)
	_, err := newClient(srv).Summarize(context.Background(), contract.NarrativeRequest{Subject: "project"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "narrative API error")
}

func TestParseList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, ParseList("1) a\n10. b\n- c", 2))
	assert.Equal(t, []string{"2024 roadmap"}, ParseList("2024 roadmap", 5))
	assert.Empty(t, ParseList("\n  \n", 5))
}
