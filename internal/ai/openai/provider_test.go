package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dromeas/triage/internal/ai/openai"
	"github.com/dromeas/triage/internal/config"
	"github.com/dromeas/triage/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const completionBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"created": 1700000000,
	"model": "gpt-test",
	"choices": [{
		"index": 0,
		"finish_reason": "stop",
		"message": {"role": "assistant", "content": "{\"category\":\"supplier\"}", "refusal": null}
	}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func newServer(t *testing.T, status int, body string, seen *map[string]any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProvider_Name(t *testing.T) {
	p := openai.NewProvider(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-test"})
	assert.Equal(t, models.ProviderGPT, p.Name())
}

func TestProvider_Complete_JSONMode(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, completionBody, &seen)

	p := openai.NewProvider(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL})
	text, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "hi", MaxTokens: 2000, JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, `{"category":"supplier"}`, text)

	assert.Equal(t, "gpt-test", seen["model"])
	assert.EqualValues(t, 2000, seen["max_completion_tokens"])
	format, ok := seen["response_format"].(map[string]any)
	require.True(t, ok, "response_format should be sent in JSON mode")
	assert.Equal(t, "json_object", format["type"])
}

func TestProvider_Complete_PlainText(t *testing.T) {
	var seen map[string]any
	srv := newServer(t, http.StatusOK, completionBody, &seen)

	p := openai.NewProvider(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "hi", MaxTokens: 100})
	require.NoError(t, err)
	_, has := seen["response_format"]
	assert.False(t, has)
}

func TestProvider_Complete_NoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"id":"x","object":"chat.completion","created":1,"model":"gpt-test","choices":[]}`, nil)

	p := openai.NewProvider(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "hi", MaxTokens: 100})
	require.Error(t, err)
}

func TestProvider_Complete_ServerError(t *testing.T) {
	srv := newServer(t, http.StatusInternalServerError, `{"error":{"message":"boom","type":"server_error"}}`, nil)

	p := openai.NewProvider(config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-test", BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), models.CompletionRequest{Prompt: "hi", MaxTokens: 100})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "openai")
}
