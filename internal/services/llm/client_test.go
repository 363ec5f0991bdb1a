package llm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-agent/internal/config"
	"news-agent/internal/resilience"
)

type intentOut struct {
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

func TestDecodeJSON(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		want    intentOut
	}{
		{name: "plain object", raw: `{"source_lang":"en","target_lang":"fr"}`, want: intentOut{"en", "fr"}},
		{name: "fenced object", raw: "```json\n{\"source_lang\":\"de\",\"target_lang\":\"de\"}\n```", want: intentOut{"de", "de"}},
		{name: "surrounding prose", raw: `Sure! {"source_lang":"en"}`, wantErr: true},
		{name: "trailing prose", raw: `{"source_lang":"en"} hope this helps`, wantErr: true},
		{name: "array", raw: `["en"]`, wantErr: true},
		{name: "unknown field", raw: `{"source_lang":"en","target_lang":"fr","confidence":0.9}`, wantErr: true},
		{name: "empty", raw: "  ", wantErr: true},
		{name: "broken", raw: `{"source_lang":`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out intentOut
			err := DecodeJSON(tt.raw, &out)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMalformedResponse)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out)
		})
	}
}

func TestSchema_JSONSchema(t *testing.T) {
	s := Schema{
		Name: "pair",
		Properties: map[string]any{
			"target_lang": map[string]any{"type": "string"},
			"source_lang": map[string]any{"type": "string"},
		},
	}

	got := s.JSONSchema()
	assert.Equal(t, "object", got["type"])
	assert.Equal(t, []string{"source_lang", "target_lang"}, got["required"])
	assert.Equal(t, false, got["additionalProperties"])
}

type stubClient struct {
	chatErr error
	jsonErr error
	delay   time.Duration
}

func (s *stubClient) Chat(ctx context.Context, _ []Message) (string, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return "ok", s.chatErr
}

func (s *stubClient) ChatJSON(_ context.Context, _ []Message, _ Schema, _ any) error {
	return s.jsonErr
}

func TestGuard_MalformedDoesNotTripBreaker(t *testing.T) {
	stub := &stubClient{jsonErr: ErrMalformedResponse}
	g := Guard(stub, "stub-malformed", time.Second)

	for i := 0; i < 10; i++ {
		err := g.ChatJSON(context.Background(), nil, Schema{Name: "x"}, &struct{}{})
		assert.ErrorIs(t, err, ErrMalformedResponse)
	}

	// breaker still closed: the next call reaches the stub
	stub.jsonErr = nil
	assert.NoError(t, g.ChatJSON(context.Background(), nil, Schema{Name: "x"}, &struct{}{}))
}

func TestGuard_TripsOnUpstreamFailures(t *testing.T) {
	stub := &stubClient{chatErr: errors.New("503 from provider")}
	g := Guard(stub, "stub-failing", time.Second)

	for i := 0; i < 5; i++ {
		_, err := g.Chat(context.Background(), nil)
		require.Error(t, err)
	}

	stub.chatErr = nil
	_, err := g.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestGuard_AppliesTimeout(t *testing.T) {
	g := Guard(&stubClient{delay: time.Second}, "stub-slow", 10*time.Millisecond)

	_, err := g.Chat(context.Background(), nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOpenAIClient_ChatJSONSendsSchema(t *testing.T) {
	var body map[string]any
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		raw, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(raw, &body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-4o-mini",
			"choices": [{
				"index": 0,
				"finish_reason": "stop",
				"message": {"role": "assistant", "content": "{\"source_lang\":\"en\",\"target_lang\":\"ig\"}"}
			}]
		}`)
	}))
	defer ts.Close()

	client, err := NewOpenAIClient(config.LLMConfig{APIKey: "test", Model: "gpt-4o-mini", BaseURL: ts.URL + "/", Timeout: 5 * time.Second})
	require.NoError(t, err)

	var out intentOut
	err = client.ChatJSON(context.Background(), []Message{System("detect"), User("hello")}, Schema{
		Name:        "language_intent",
		Description: "language pair",
		Properties: map[string]any{
			"source_lang": map[string]any{"type": "string"},
			"target_lang": map[string]any{"type": "string"},
		},
	}, &out)
	require.NoError(t, err)

	assert.Equal(t, intentOut{"en", "ig"}, out)
	assert.Equal(t, "gpt-4o-mini", body["model"])
	format, ok := body["response_format"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "json_schema", format["type"])
}

func TestNewClient_UnknownProvider(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: "gemini", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{Provider: config.ProviderAnthropic})
	require.Error(t, err)
}
