// Package llmtest provides a scripted llm.Client for tests.
package llmtest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"news-agent/internal/services/llm"
)

// Call records one request made to the fake.
type Call struct {
	Kind     string // "chat" or the schema name
	Messages []llm.Message
}

// Fake answers Chat with ChatReply/ChatErr and ChatJSON with the raw JSON
// registered for the schema name. Unregistered schemas return an error.
type Fake struct {
	mu sync.Mutex

	ChatReply string
	ChatErr   error

	// JSON maps schema names to the raw model output to decode.
	JSON map[string]string
	// JSONErr maps schema names to an error returned instead of output.
	JSONErr map[string]error

	calls []Call
}

func (f *Fake) Chat(_ context.Context, messages []llm.Message) (string, error) {
	f.record("chat", messages)
	if f.ChatErr != nil {
		return "", f.ChatErr
	}
	return f.ChatReply, nil
}

func (f *Fake) ChatJSON(_ context.Context, messages []llm.Message, schema llm.Schema, out any) error {
	f.record(schema.Name, messages)

	if err, ok := f.JSONErr[schema.Name]; ok {
		return err
	}
	raw, ok := f.JSON[schema.Name]
	if !ok {
		return fmt.Errorf("llmtest: no scripted output for schema %q", schema.Name)
	}
	if err := llm.DecodeJSON(raw, out); err != nil {
		return err
	}
	return nil
}

// Calls returns a copy of the recorded calls in order.
func (f *Fake) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// Kinds returns the Kind of every recorded call in order.
func (f *Fake) Kinds() []string {
	calls := f.Calls()
	kinds := make([]string, len(calls))
	for i, c := range calls {
		kinds[i] = c.Kind
	}
	return kinds
}

func (f *Fake) record(kind string, messages []llm.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, Call{Kind: kind, Messages: append([]llm.Message(nil), messages...)})
}

// MustJSON marshals v for use as scripted output.
func MustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
