package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xauti/content_go_server/config"
)

func newFakeOpenAI(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()

	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer tenant-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o-mini", body["model"])

		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]interface{}{
				{"index": 0, "message": map[string]string{"role": "assistant", "content": reply}, "finish_reason": "stop"},
			},
		})
	}))
}

func TestClient_Complete(t *testing.T) {
	server := newFakeOpenAI(t, "  Day one script  ", http.StatusOK)
	defer server.Close()

	client := NewClient(config.OpenAIConfig{Model: "gpt-4o-mini", MaxTokens: 100, BaseURL: server.URL + "/v1"})

	out, err := client.Complete(context.Background(), "tenant-key", "system", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "Day one script", out)
}

func TestClient_Complete_Errors(t *testing.T) {
	server := newFakeOpenAI(t, "", http.StatusOK)
	defer server.Close()

	client := NewClient(config.OpenAIConfig{Model: "gpt-4o-mini", BaseURL: server.URL + "/v1"})

	_, err := client.Complete(context.Background(), "", "system", "prompt")
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = client.Complete(context.Background(), "tenant-key", "system", "prompt")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	failing := newFakeOpenAI(t, "", http.StatusInternalServerError)
	defer failing.Close()

	client = NewClient(config.OpenAIConfig{Model: "gpt-4o-mini", BaseURL: failing.URL + "/v1"})
	_, err = client.Complete(context.Background(), "tenant-key", "system", "prompt")
	assert.Error(t, err)
}
