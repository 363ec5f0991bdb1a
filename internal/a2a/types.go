// Package a2a holds the JSON-RPC 2.0 types of the Agent-to-Agent protocol and
// the store for tasks that have been answered.
package a2a

import (
	"bytes"
	"encoding/json"
)

const Version = "2.0"

// Methods
const (
	MethodMessageSend = "message/send"
	MethodTasksGet    = "tasks/get"
)

// JSON-RPC and A2A error codes
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeTaskNotFound   = -32001
)

// StateCompleted is the only state a task reaches; message/send answers synchronously.
const StateCompleted = "completed"

// Request is a JSON-RPC request. ID is kept raw so it is echoed back
// exactly as sent, whether a string or a number.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// HasID reports whether the request carries a usable id.
func (r *Request) HasID() bool {
	id := bytes.TrimSpace(r.ID)
	return len(id) > 0 && !bytes.Equal(id, []byte("null")) && !bytes.Equal(id, []byte(`""`))
}

type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  any             `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func NewResult(id json.RawMessage, result any) Response {
	return Response{JSONRPC: Version, ID: id, Result: result}
}

func NewError(id json.RawMessage, code int, message string, data any) Response {
	return Response{
		JSONRPC: Version,
		ID:      id,
		Error:   &Error{Code: code, Message: message, Data: data},
	}
}

// MessageSendParams are the params of message/send.
type MessageSendParams struct {
	Message       *Message        `json:"message"`
	Configuration json.RawMessage `json:"configuration,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
}

// TaskQueryParams are the params of tasks/get.
type TaskQueryParams struct {
	ID string `json:"id"`
}

type Message struct {
	Kind      string         `json:"kind"`
	Role      string         `json:"role"`
	Parts     []Part         `json:"parts"`
	MessageID string         `json:"messageId,omitempty"`
	TaskID    string         `json:"taskId,omitempty"`
	ContextID string         `json:"contextId,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// FirstText returns the text of the first part, or "".
func (m *Message) FirstText() string {
	if m == nil || len(m.Parts) == 0 {
		return ""
	}
	return m.Parts[0].Text
}

// Part is a text or data part; Kind tells which field is set.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
	Data any    `json:"data,omitempty"`
}

func TextPart(text string) Part {
	return Part{Kind: "text", Text: text}
}

func DataPart(data any) Part {
	return Part{Kind: "data", Data: data}
}

// AgentMessage builds a reply message from the agent.
func AgentMessage(messageID, taskID, contextID, text string) *Message {
	return &Message{
		Kind:      "message",
		Role:      "agent",
		Parts:     []Part{TextPart(text)},
		MessageID: messageID,
		TaskID:    taskID,
		ContextID: contextID,
	}
}

type Task struct {
	ID        string     `json:"id"`
	ContextID string     `json:"contextId"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts"`
	History   []Message  `json:"history"`
	Kind      string     `json:"kind"`
}

type TaskStatus struct {
	State     string   `json:"state"`
	Timestamp string   `json:"timestamp"`
	Message   *Message `json:"message,omitempty"`
}

type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// AgentCard is served at /.well-known/agent.json.
type AgentCard struct {
	Name               string       `json:"name"`
	Description        string       `json:"description"`
	URL                string       `json:"url"`
	Version            string       `json:"version"`
	ProtocolVersion    string       `json:"protocolVersion"`
	Capabilities       Capabilities `json:"capabilities"`
	DefaultInputModes  []string     `json:"defaultInputModes"`
	DefaultOutputModes []string     `json:"defaultOutputModes"`
	Skills             []Skill      `json:"skills"`
}

type Capabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

type Skill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Examples    []string `json:"examples,omitempty"`
}

// NewsAgentCard describes this agent, reachable at url.
func NewsAgentCard(url, version string) AgentCard {
	return AgentCard{
		Name:            "NewsSense",
		Description:     "Multilingual news agent that finds recent news on any topic and summarizes it in the language you ask for.",
		URL:             url,
		Version:         version,
		ProtocolVersion: "0.3.0",
		Capabilities:    Capabilities{},
		DefaultInputModes: []string{
			"text/plain",
		},
		DefaultOutputModes: []string{
			"text/plain",
			"application/json",
		},
		Skills: []Skill{
			{
				ID:          "news-summary",
				Name:        "News summary",
				Description: "Fetches news for a topic and date range and summarizes it, optionally translated into another language.",
				Tags:        []string{"news", "summarization", "translation", "multilingual"},
				Examples: []string{
					"Tell me about business news in Nigeria, translate to Igbo.",
					"What happened in football today?",
					"Summarize AI news from last week in French.",
				},
			},
		},
	}
}
