package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"news-agent/internal/config"
)

// AnthropicClient talks to the Claude Messages API. The API has no JSON
// schema response mode here, so ChatJSON states the schema in the system
// prompt and decodes the whole reply strictly.
type AnthropicClient struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

func NewAnthropicClient(cfg config.LLMConfig) (*AnthropicClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(1),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}

	maxTokens := int64(cfg.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	return &AnthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: maxTokens,
	}, nil
}

func (c *AnthropicClient) Chat(ctx context.Context, messages []Message) (string, error) {
	system, converted := splitSystem(messages)

	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  converted,
	})
	if err != nil {
		return "", fmt.Errorf("claude api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			sb.WriteString(text.Text)
		}
	}

	content := strings.TrimSpace(sb.String())
	if content == "" {
		return "", ErrEmptyResponse
	}
	return content, nil
}

func (c *AnthropicClient) ChatJSON(ctx context.Context, messages []Message, schema Schema, out any) error {
	definition, err := json.Marshal(schema.JSONSchema())
	if err != nil {
		return fmt.Errorf("failed to encode schema %s: %w", schema.Name, err)
	}

	instruction := fmt.Sprintf(
		"Respond with exactly one JSON object that validates against this JSON Schema (%s: %s):\n%s\nDo not add prose, markdown or code fences.",
		schema.Name, schema.Description, definition,
	)

	withSchema := make([]Message, 0, len(messages)+1)
	withSchema = append(withSchema, System(instruction))
	withSchema = append(withSchema, messages...)

	content, err := c.Chat(ctx, withSchema)
	if err != nil {
		if errors.Is(err, ErrEmptyResponse) {
			return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		return err
	}

	if err := DecodeJSON(content, out); err != nil {
		log.Warn().Str("schema", schema.Name).Str("response", content).Msg("Claude returned output outside the schema")
		return err
	}
	return nil
}

func splitSystem(messages []Message) ([]anthropic.TextBlockParam, []anthropic.MessageParam) {
	var system []anthropic.TextBlockParam
	converted := make([]anthropic.MessageParam, 0, len(messages))

	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleAssistant:
			converted = append(converted, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			converted = append(converted, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	return system, converted
}
