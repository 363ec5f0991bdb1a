package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrMalformedResponse marks model output that does not decode into the requested schema.
	ErrMalformedResponse = errors.New("malformed model response")

	// ErrEmptyResponse marks a completion without any text content.
	ErrEmptyResponse = errors.New("empty model response")
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged chat message
type Message struct {
	Role    Role
	Content string
}

func System(content string) Message    { return Message{Role: RoleSystem, Content: content} }
func User(content string) Message      { return Message{Role: RoleUser, Content: content} }

// Schema describes the JSON object a structured call must return. Every
// property is required and no additional properties are allowed, which is
// what strict structured-output modes expect.
type Schema struct {
	Name        string
	Description string
	Properties  map[string]any
}

// JSONSchema renders the schema as a JSON Schema object.
func (s Schema) JSONSchema() map[string]any {
	required := make([]string, 0, len(s.Properties))
	for name := range s.Properties {
		required = append(required, name)
	}
	sort.Strings(required)

	return map[string]any{
		"type":                 "object",
		"properties":           s.Properties,
		"required":             required,
		"additionalProperties": false,
	}
}

// Client interface for different LLM providers
type Client interface {
	// Chat returns the model's free-text reply to the conversation.
	Chat(ctx context.Context, messages []Message) (string, error)

	// ChatJSON asks for a reply matching schema and decodes it into out.
	// Output that cannot be decoded yields an error wrapping ErrMalformedResponse.
	ChatJSON(ctx context.Context, messages []Message, schema Schema, out any) error
}

// DecodeJSON strictly decodes a complete JSON object from model output. A
// single surrounding markdown code fence is tolerated; anything else around
// the object, and any field out does not declare, is rejected.
func DecodeJSON(raw string, out any) error {
	body := strings.TrimSpace(raw)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
		body = strings.TrimSpace(body)
	}

	if body == "" {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, ErrEmptyResponse)
	}
	if !strings.HasPrefix(body, "{") {
		return fmt.Errorf("%w: expected a JSON object", ErrMalformedResponse)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", ErrMalformedResponse)
	}

	return nil
}
