package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct {
	reply string
	seen  string
}

func (s *stubProvider) GenerateResponse(_ context.Context, prompt, systemPrompt string, _ map[string]interface{}) (string, error) {
	s.seen = systemPrompt
	return s.reply + ":" + prompt, nil
}

func (s *stubProvider) AdaptInstructions(raw string) string { return "adapted " + raw }

func TestManager_Selection(t *testing.T) {
	m := NewManager(Config{
		ActiveProvider: ProviderDeepSeek,
		Tasks:          map[string]TaskConfig{"narrative": {Provider: ProviderGemini}},
	})

	assert.IsType(t, &GeminiProvider{}, m.GetProvider("narrative"))
	assert.IsType(t, &DeepSeekProvider{}, m.GetProvider("other"))
	assert.Nil(t, m.GetProviderByName("nope"))

	require.Error(t, m.SetGlobalProvider("nope"))
	require.NoError(t, m.SetGlobalProvider(ProviderGeminiLegacy))
	assert.Equal(t, ProviderGeminiLegacy, m.GetActiveProvider())
	assert.IsType(t, &GeminiLegacyProvider{}, m.GetProvider("other"))
}

func TestManager_ExecutePrompt(t *testing.T) {
	stub := &stubProvider{reply: "ok"}
	m := NewManager(Config{ActiveProvider: "stub"})
	m.Register("stub", stub)

	out, err := m.ExecutePrompt(context.Background(), "narrative", "hi", "be brief", nil)
	require.NoError(t, err)
	assert.Equal(t, "ok:hi", out)
	assert.Equal(t, "adapted be brief", stub.seen)
}

func TestDeepSeekProvider(t *testing.T) {
	var got DeepSeekRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"headline\":\"x\"}"}}]}`))
	}))
	defer srv.Close()

	p := &DeepSeekProvider{APIKey: "test-key", BaseURL: srv.URL}
	out, err := p.GenerateResponse(context.Background(), "value it", "system", map[string]interface{}{OptJSON: true})
	require.NoError(t, err)
	assert.Equal(t, `{"headline":"x"}`, out)

	assert.Equal(t, "deepseek-chat", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "value it", got.Messages[1].Content)
}

func TestDeepSeekProvider_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &DeepSeekProvider{APIKey: "k", BaseURL: srv.URL}
	_, err := p.GenerateResponse(context.Background(), "p", "", nil)
	assert.ErrorContains(t, err, "status=429")

	t.Setenv("DEEPSEEK_API_KEY", "")
	_, err = (&DeepSeekProvider{BaseURL: srv.URL}).GenerateResponse(context.Background(), "p", "", nil)
	assert.ErrorContains(t, err, "DEEPSEEK_API_KEY_MISSING")
}

func TestGeminiProvider_MissingKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	_, err := (&GeminiProvider{}).GenerateResponse(context.Background(), "p", "", nil)
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
	_, err = (&GeminiLegacyProvider{}).GenerateResponse(context.Background(), "p", "", nil)
	assert.ErrorContains(t, err, "GEMINI_API_KEY")
}
