package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"news-agent/internal/a2a"
	"news-agent/internal/services/agent"
)

const (
	maxBodyBytes = 1 << 20

	minTextLength = 3
	maxTextLength = 500

	timestampLayout = "2006-01-02T15:04:05.000Z07:00"
)

// Agent runs one pipeline for a message. agent.Orchestrator implements it.
type Agent interface {
	Run(ctx context.Context, text string) (*agent.Outcome, error)
}

// NewsAgentHandler serves the plain JSON and the A2A JSON-RPC entry points.
type NewsAgentHandler struct {
	agent Agent
	tasks a2a.TaskStore
	card  a2a.AgentCard
	now   func() time.Time
}

func NewNewsAgentHandler(agent Agent, tasks a2a.TaskStore, card a2a.AgentCard) *NewsAgentHandler {
	return &NewsAgentHandler{
		agent: agent,
		tasks: tasks,
		card:  card,
		now:   time.Now,
	}
}

// RegisterRoutes registers all agent routes
func (h *NewsAgentHandler) RegisterRoutes(r chi.Router) {
	r.Post("/news-agent", h.A2A)
	r.Post("/api/news-agent", h.Plain)
	r.Get("/.well-known/agent.json", h.AgentCard)
}

// plainResponse is the envelope of the plain JSON adapter.
type plainResponse struct {
	Success bool                `json:"success"`
	Message string              `json:"message"`
	Data    *plainData          `json:"data,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	Error   string              `json:"error,omitempty"`
}

type plainData struct {
	Input   string `json:"input"`
	Summary string `json:"summary"`
}

// Plain handles {"text": "..."} requests.
func (h *NewsAgentHandler) Plain(w http.ResponseWriter, r *http.Request) {
	logger := zerolog.Ctx(r.Context())

	var body map[string]any
	_ = json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&body)

	text, problems := validateText(body["text"])
	if len(problems) > 0 {
		writeJSON(w, http.StatusUnprocessableEntity, plainResponse{
			Success: false,
			Message: "The given data was invalid.",
			Errors:  map[string][]string{"text": problems},
		})
		return
	}

	outcome, err := h.agent.Run(r.Context(), text)
	if err != nil {
		logger.Error().Err(err).Msg("News agent request failed")
		writeJSON(w, http.StatusInternalServerError, plainResponse{
			Success: false,
			Message: "Failed to process the news request.",
			Error:   err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, plainResponse{
		Success: true,
		Message: "News summary generated successfully.",
		Data: &plainData{
			Input:   text,
			Summary: outcome.Reply,
		},
	})
}

// validateText applies required|string|min:3|max:500 to the text field.
func validateText(value any) (string, []string) {
	if value == nil {
		return "", []string{"The text field is required."}
	}
	s, ok := value.(string)
	if !ok {
		return "", []string{"The text field must be a string."}
	}
	s = strings.TrimSpace(s)
	n := utf8.RuneCountInString(s)
	switch {
	case n == 0:
		return "", []string{"The text field is required."}
	case n < minTextLength:
		return "", []string{"The text field must be at least 3 characters."}
	case n > maxTextLength:
		return "", []string{"The text field must not be greater than 500 characters."}
	}
	return s, nil
}

// A2A handles JSON-RPC 2.0 requests.
func (h *NewsAgentHandler) A2A(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, a2a.NewError(nil, a2a.CodeParseError, "Parse error", nil))
		return
	}

	var req a2a.Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, a2a.NewError(nil, a2a.CodeParseError, "Parse error", nil))
		return
	}

	if req.JSONRPC != a2a.Version || !req.HasID() {
		writeJSON(w, http.StatusBadRequest, invalidRequest(req))
		return
	}

	switch req.Method {
	case "", a2a.MethodMessageSend:
		h.messageSend(w, r, req)
	case a2a.MethodTasksGet:
		h.tasksGet(w, r, req)
	default:
		writeJSON(w, http.StatusBadRequest, a2a.NewError(req.ID, a2a.CodeMethodNotFound, "Method not found", req.Method))
	}
}

func (h *NewsAgentHandler) messageSend(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	logger := zerolog.Ctx(r.Context())

	var params a2a.MessageSendParams
	if len(req.Params) == 0 || json.Unmarshal(req.Params, &params) != nil || params.Message == nil {
		writeJSON(w, http.StatusBadRequest, invalidRequest(req))
		return
	}

	text := strings.TrimSpace(params.Message.FirstText())
	if text == "" {
		writeJSON(w, http.StatusBadRequest, invalidRequest(req))
		return
	}

	outcome, err := h.agent.Run(r.Context(), text)
	if err != nil {
		logger.Error().Err(err).Msg("A2A news agent failed")
		writeJSON(w, http.StatusInternalServerError, a2a.NewError(req.ID, a2a.CodeInternalError, "Internal error", err.Error()))
		return
	}

	task := h.buildTask(params.Message, outcome)
	if err := h.tasks.Save(r.Context(), task); err != nil {
		logger.Warn().Err(err).Str("task_id", task.ID).Msg("Failed to store task")
	}

	writeJSON(w, http.StatusOK, a2a.NewResult(req.ID, task))
}

func (h *NewsAgentHandler) tasksGet(w http.ResponseWriter, r *http.Request, req a2a.Request) {
	var params a2a.TaskQueryParams
	if len(req.Params) == 0 || json.Unmarshal(req.Params, &params) != nil || params.ID == "" {
		writeJSON(w, http.StatusBadRequest, a2a.NewError(req.ID, a2a.CodeInvalidParams, "Invalid params", nil))
		return
	}

	task, err := h.tasks.Get(r.Context(), params.ID)
	switch {
	case errors.Is(err, a2a.ErrTaskNotFound):
		writeJSON(w, http.StatusNotFound, a2a.NewError(req.ID, a2a.CodeTaskNotFound, "Task not found", params.ID))
	case err != nil:
		zerolog.Ctx(r.Context()).Error().Err(err).Str("task_id", params.ID).Msg("Failed to load task")
		writeJSON(w, http.StatusInternalServerError, a2a.NewError(req.ID, a2a.CodeInternalError, "Internal error", nil))
	default:
		writeJSON(w, http.StatusOK, a2a.NewResult(req.ID, task))
	}
}

func (h *NewsAgentHandler) buildTask(msg *a2a.Message, outcome *agent.Outcome) *a2a.Task {
	taskID := msg.TaskID
	if taskID == "" {
		taskID = uuid.NewString()
	}
	contextID := msg.ContextID
	if contextID == "" {
		contextID = uuid.NewString()
	}

	history := *msg
	if history.Kind == "" {
		history.Kind = "message"
	}
	if history.Role == "" {
		history.Role = "user"
	}

	artifacts := []a2a.Artifact{}
	if len(outcome.Articles) > 0 {
		artifacts = append(artifacts, a2a.Artifact{
			ArtifactID: uuid.NewString(),
			Name:       "news-articles",
			Parts: []a2a.Part{a2a.DataPart(map[string]any{
				"query":       outcome.Intent,
				"source_lang": outcome.SourceLang,
				"target_lang": outcome.TargetLang,
				"from":        outcome.From,
				"to":          outcome.To,
				"articles":    outcome.Articles,
			})},
		})
	}

	return &a2a.Task{
		ID:        taskID,
		ContextID: contextID,
		Status: a2a.TaskStatus{
			State:     a2a.StateCompleted,
			Timestamp: h.now().UTC().Format(timestampLayout),
			Message:   a2a.AgentMessage(uuid.NewString(), taskID, contextID, outcome.Reply),
		},
		Artifacts: artifacts,
		History:   []a2a.Message{history},
		Kind:      "task",
	}
}

// AgentCard serves the A2A agent card.
func (h *NewsAgentHandler) AgentCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.card)
}

func invalidRequest(req a2a.Request) a2a.Response {
	var id json.RawMessage
	if req.HasID() {
		id = req.ID
	}
	return a2a.NewError(id, a2a.CodeInvalidRequest, "Invalid A2A JSON-RPC Request", nil)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}
