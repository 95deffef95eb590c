package grok

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/simpleai-go/simpleai/adapter"
	"github.com/simpleai-go/simpleai/schema"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestAdapter(t *testing.T, baseURL string) *Adapter {
	t.Helper()
	a, err := New(adapter.Config{APIKey: "test-key", BaseURL: baseURL})
	require.NoError(t, err)
	return a
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()
	_, err := New(adapter.Config{})
	assert.ErrorIs(t, err, adapter.ErrMissingAPIKey)
}

func TestNameAndCapabilities(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, "")
	assert.Equal(t, "grok", a.Name())
	assert.False(t, a.Capabilities().BinaryFiles)
}

func TestTranslate(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, "")

	body := a.Translate(&adapter.Request{
		Model:           "grok-4-latest",
		Messages:        []adapter.Message{{Role: "user", Text: "news?"}},
		RequireSearch:   true,
		ReturnCitations: true,
		Options:         map[string]any{"temperature": 0.2},
	})

	assert.Equal(t, "grok-4-latest", body["model"])
	assert.Equal(t, defaultMaxTokens, body["max_tokens"])
	assert.Equal(t, 0.2, body["temperature"])

	messages := body["messages"].([]map[string]any)
	require.Len(t, messages, 2)
	assert.Equal(t, "system", messages[0]["role"])
	assert.Equal(t, groundingInstruction, messages[0]["content"])

	sp := body["search_parameters"].(map[string]any)
	assert.Equal(t, "on", sp["mode"])
	assert.Equal(t, true, sp["return_citations"])
}

func TestTranslateCitationsWithoutForcedSearch(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, "")

	body := a.Translate(&adapter.Request{
		Model:           "grok-4-latest",
		Messages:        []adapter.Message{{Role: "user", Text: "q"}},
		ReturnCitations: true,
	})
	sp := body["search_parameters"].(map[string]any)
	assert.Equal(t, "auto", sp["mode"])

	messages := body["messages"].([]map[string]any)
	assert.Len(t, messages, 1, "no grounding system message without forced search")
}

func TestTranslateStructuredOutput(t *testing.T) {
	t.Parallel()
	a := newTestAdapter(t, "")

	caller := map[string]any{
		"type":       "object",
		"properties": map[string]any{"topic": map[string]any{"type": "string"}},
	}
	body := a.Translate(&adapter.Request{
		Model:    "grok-4-latest",
		Messages: []adapter.Message{{Role: "user", Text: "extract"}},
		Output:   &schema.Format{Schema: caller, Strict: true},
	})
	rf := body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", rf["type"])
	js := rf["json_schema"].(map[string]any)
	assert.Equal(t, schema.DefaultName, js["name"])
	assert.Equal(t, true, js["strict"])

	submitted := js["schema"].(map[string]any)
	assert.Equal(t, false, submitted["additionalProperties"])
	_, touched := caller["additionalProperties"]
	assert.False(t, touched, "caller schema stays untouched")
}

func TestExecute(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "grok-4-latest", body["model"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "answer"}}],
			"citations": ["https://example.com"],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	res, err := a.Execute(context.Background(), &adapter.Request{
		Model:    "grok-4-latest",
		Messages: []adapter.Message{{Role: "user", Text: "q"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "answer", res.Text)
	assert.Equal(t, int64(10), res.Usage.InputTokens)
	assert.Equal(t, int64(15), res.Usage.TotalTokens)
	assert.Equal(t, 1, res.Calls)
	assert.Contains(t, res.Raw, "citations")
}

func TestExecuteRateLimited(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, err := a.Execute(context.Background(), &adapter.Request{
		Model:    "grok-4-latest",
		Messages: []adapter.Message{{Role: "user", Text: "q"}},
	})
	require.Error(t, err)

	var rle *adapter.RateLimitError
	require.True(t, errors.As(err, &rle))
	assert.Equal(t, "grok", rle.Provider)
	assert.Equal(t, 2*time.Second, rle.RetryAfter)
	assert.Equal(t, "rate limit exceeded", rle.Message)
}

func TestExecuteServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error": {"message": "bad model"}}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, err := a.Execute(context.Background(), &adapter.Request{
		Model:    "nope",
		Messages: []adapter.Message{{Role: "user", Text: "q"}},
	})
	require.Error(t, err)
	assert.ErrorContains(t, err, "bad model")
}

func TestExecuteEmptyResponse(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices": []}`))
	}))
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	_, err := a.Execute(context.Background(), &adapter.Request{
		Model:    "grok-4-latest",
		Messages: []adapter.Message{{Role: "user", Text: "q"}},
	})
	assert.ErrorIs(t, err, adapter.ErrEmptyResponse)
}
