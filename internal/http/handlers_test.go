package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"news-agent/internal/a2a"
	"news-agent/internal/services/agent"
	"news-agent/internal/services/news"
)

type stubAgent struct {
	mu      sync.Mutex
	outcome *agent.Outcome
	err     error
	inputs  []string
}

func (s *stubAgent) Run(_ context.Context, text string) (*agent.Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inputs = append(s.inputs, text)
	if s.err != nil {
		return nil, s.err
	}
	return s.outcome, nil
}

func newsOutcome() *agent.Outcome {
	return &agent.Outcome{
		Category:   agent.CategoryNewsRequest,
		SourceLang: "en",
		TargetLang: "de",
		Intent:     "business news in Nigeria",
		From:       "2025-10-08",
		To:         "2025-10-15",
		Articles: []news.Article{{
			Title:       "Lagos stocks rally",
			Description: "Shares rose.",
			Source:      "BusinessDay",
			PublishedAt: "2025-10-14T08:00:00Z",
			URL:         "https://businessday.example/1",
		}},
		Reply:  "Die Börse in Lagos legte zu.",
		Status: agent.StatusOK,
	}
}

func newTestServer(t *testing.T, ag Agent, checks ...ReadinessCheck) *httptest.Server {
	t.Helper()

	h := NewNewsAgentHandler(ag, a2a.NewMemoryTaskStore(time.Hour), a2a.NewsAgentCard("http://agent.test/news-agent", "test"))
	h.now = func() time.Time { return time.Date(2025, time.October, 15, 12, 0, 0, 0, time.UTC) }

	router := NewRouter(5 * time.Second)
	router.RegisterAgentRoutes(h)
	router.RegisterHealthRoutes(checks...)
	router.RegisterMetricsRoutes()

	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func post(t *testing.T, url, body string) (int, map[string]any) {
	t.Helper()

	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func rpcError(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	e, ok := body["error"].(map[string]any)
	require.True(t, ok, "response has an error object: %v", body)
	return e
}

const validSend = `{
	"jsonrpc": "2.0",
	"id": "req-1",
	"method": "message/send",
	"params": {
		"message": {
			"kind": "message",
			"role": "user",
			"messageId": "msg-1",
			"taskId": "task-42",
			"parts": [{"kind": "text", "text": "Tell me about business news in Nigeria, translate to German"}]
		}
	}
}`

func TestA2A_MessageSend(t *testing.T) {
	ag := &stubAgent{outcome: newsOutcome()}
	ts := newTestServer(t, ag)

	status, body := post(t, ts.URL+"/news-agent", validSend)
	require.Equal(t, http.StatusOK, status)

	assert.Equal(t, "2.0", body["jsonrpc"])
	assert.Equal(t, "req-1", body["id"])
	assert.NotContains(t, body, "error")

	result := body["result"].(map[string]any)
	assert.Equal(t, "task-42", result["id"])
	assert.NotEmpty(t, result["contextId"])
	assert.Equal(t, "task", result["kind"])

	st := result["status"].(map[string]any)
	assert.Equal(t, "completed", st["state"])
	assert.Equal(t, "2025-10-15T12:00:00.000Z", st["timestamp"])
	msg := st["message"].(map[string]any)
	assert.Equal(t, "agent", msg["role"])
	part := msg["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "text", part["kind"])
	assert.Equal(t, "Die Börse in Lagos legte zu.", part["text"])

	history := result["history"].([]any)
	require.Len(t, history, 1)
	assert.Equal(t, "msg-1", history[0].(map[string]any)["messageId"])

	artifacts := result["artifacts"].([]any)
	require.Len(t, artifacts, 1)
	dataPart := artifacts[0].(map[string]any)["parts"].([]any)[0].(map[string]any)
	assert.Equal(t, "data", dataPart["kind"])
	data := dataPart["data"].(map[string]any)
	assert.Equal(t, "de", data["target_lang"])
	assert.Len(t, data["articles"], 1)

	assert.Equal(t, []string{"Tell me about business news in Nigeria, translate to German"}, ag.inputs)

	// the stored task is retrievable
	status, body = post(t, ts.URL+"/news-agent", `{"jsonrpc":"2.0","id":2,"method":"tasks/get","params":{"id":"task-42"}}`)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(2), body["id"])
	assert.Equal(t, "task-42", body["result"].(map[string]any)["id"])
}

func TestA2A_GeneratesIDsAndOmitsArtifactsWithoutArticles(t *testing.T) {
	ts := newTestServer(t, &stubAgent{outcome: &agent.Outcome{
		Category: agent.CategoryConversational,
		Articles: []news.Article{},
		Reply:    "Hello! I'm NewsSense.",
	}})

	status, body := post(t, ts.URL+"/news-agent", `{"jsonrpc":"2.0","id":"a","params":{"message":{"role":"user","parts":[{"kind":"text","text":"hello"}]}}}`)
	require.Equal(t, http.StatusOK, status)

	result := body["result"].(map[string]any)
	assert.Len(t, result["id"], 36)
	assert.Len(t, result["contextId"], 36)
	assert.Empty(t, result["artifacts"])
}

func TestA2A_InvalidRequests(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		wantID any
	}{
		{"missing jsonrpc", `{"id":"1","params":{"message":{"parts":[{"kind":"text","text":"hi there"}]}}}`, "1"},
		{"wrong version", `{"jsonrpc":"1.0","id":"1","params":{"message":{"parts":[{"kind":"text","text":"hi there"}]}}}`, "1"},
		{"missing id", `{"jsonrpc":"2.0","params":{"message":{"parts":[{"kind":"text","text":"hi there"}]}}}`, nil},
		{"empty id", `{"jsonrpc":"2.0","id":"","params":{"message":{"parts":[{"kind":"text","text":"hi there"}]}}}`, nil},
		{"missing params", `{"jsonrpc":"2.0","id":"1"}`, "1"},
		{"missing message", `{"jsonrpc":"2.0","id":"1","params":{}}`, "1"},
		{"no parts", `{"jsonrpc":"2.0","id":"1","params":{"message":{"parts":[]}}}`, "1"},
		{"blank text", `{"jsonrpc":"2.0","id":"1","params":{"message":{"parts":[{"kind":"text","text":"  "}]}}}`, "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ag := &stubAgent{outcome: newsOutcome()}
			ts := newTestServer(t, ag)

			status, body := post(t, ts.URL+"/news-agent", tt.body)

			assert.Equal(t, http.StatusBadRequest, status)
			assert.Equal(t, float64(a2a.CodeInvalidRequest), rpcError(t, body)["code"])
			assert.Equal(t, tt.wantID, body["id"])
			assert.Empty(t, ag.inputs)
		})
	}
}

func TestA2A_ParseError(t *testing.T) {
	ts := newTestServer(t, &stubAgent{})

	status, body := post(t, ts.URL+"/news-agent", `{not json`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, float64(a2a.CodeParseError), rpcError(t, body)["code"])
}

func TestA2A_InternalError(t *testing.T) {
	ts := newTestServer(t, &stubAgent{err: context.DeadlineExceeded})

	status, body := post(t, ts.URL+"/news-agent", validSend)

	assert.Equal(t, http.StatusInternalServerError, status)
	e := rpcError(t, body)
	assert.Equal(t, float64(a2a.CodeInternalError), e["code"])
	assert.Equal(t, "Internal error", e["message"])
	assert.Equal(t, "req-1", body["id"])
}

func TestA2A_TaskNotFound(t *testing.T) {
	ts := newTestServer(t, &stubAgent{})

	status, body := post(t, ts.URL+"/news-agent", `{"jsonrpc":"2.0","id":"x","method":"tasks/get","params":{"id":"unknown"}}`)

	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, float64(a2a.CodeTaskNotFound), rpcError(t, body)["code"])
}

func TestA2A_UnknownMethod(t *testing.T) {
	ts := newTestServer(t, &stubAgent{})

	status, body := post(t, ts.URL+"/news-agent", `{"jsonrpc":"2.0","id":"x","method":"tasks/cancel","params":{}}`)

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, float64(a2a.CodeMethodNotFound), rpcError(t, body)["code"])
}

func TestPlain_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"missing", `{}`, "The text field is required."},
		{"not json", `text=hello`, "The text field is required."},
		{"not a string", `{"text": 42}`, "The text field must be a string."},
		{"too short", `{"text": "hi"}`, "The text field must be at least 3 characters."},
		{"too long", `{"text": "` + strings.Repeat("ä", 501) + `"}`, "The text field must not be greater than 500 characters."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ag := &stubAgent{outcome: newsOutcome()}
			ts := newTestServer(t, ag)

			status, body := post(t, ts.URL+"/api/news-agent", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, status)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, "The given data was invalid.", body["message"])
			assert.Equal(t, []any{tt.want}, body["errors"].(map[string]any)["text"])
			assert.Empty(t, ag.inputs)
		})
	}
}

func TestPlain_Success(t *testing.T) {
	ag := &stubAgent{outcome: newsOutcome()}
	ts := newTestServer(t, ag)

	status, body := post(t, ts.URL+"/api/news-agent", `{"text": "  Business news in Nigeria in German  "}`)

	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]any)
	assert.Equal(t, "Business news in Nigeria in German", data["input"])
	assert.Equal(t, "Die Börse in Lagos legte zu.", data["summary"])
}

func TestPlain_Failure(t *testing.T) {
	ts := newTestServer(t, &stubAgent{err: errors.New("context canceled")})

	status, body := post(t, ts.URL+"/api/news-agent", `{"text": "AI news"}`)

	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "context canceled", body["error"])
}

func TestAgentCard(t *testing.T) {
	ts := newTestServer(t, &stubAgent{})

	resp, err := http.Get(ts.URL + "/.well-known/agent.json")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	var card a2a.AgentCard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&card))
	assert.Equal(t, "NewsSense", card.Name)
	assert.Equal(t, "http://agent.test/news-agent", card.URL)
	assert.NotEmpty(t, card.Skills)
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t, &stubAgent{},
		ReadinessCheck{Name: "redis", Check: func(context.Context) error { return nil }},
		ReadinessCheck{Name: "database", Check: func(context.Context) error { return errors.New("connection refused") }},
	)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	checks := body["checks"].(map[string]any)
	assert.Equal(t, "ok", checks["redis"])
	assert.Equal(t, "connection refused", checks["database"])
}

func TestNotFoundAndMetrics(t *testing.T) {
	ts := newTestServer(t, &stubAgent{})

	resp, err := http.Get(ts.URL + "/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

type slowAgent struct{}

func (slowAgent) Run(ctx context.Context, _ string) (*agent.Outcome, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestA2A_RequestDeadlineYieldsSingleEnvelope(t *testing.T) {
	h := NewNewsAgentHandler(slowAgent{}, a2a.NewMemoryTaskStore(time.Hour), a2a.NewsAgentCard("http://agent.test/news-agent", "test"))
	router := NewRouter(30 * time.Millisecond)
	router.RegisterAgentRoutes(h)
	ts := httptest.NewServer(router)
	defer ts.Close()

	status, body := post(t, ts.URL+"/news-agent", validSend)

	assert.Equal(t, http.StatusInternalServerError, status)
	e := rpcError(t, body)
	assert.Equal(t, float64(a2a.CodeInternalError), e["code"])
	assert.Equal(t, "context deadline exceeded", e["data"])
	assert.Equal(t, "req-1", body["id"])
}
