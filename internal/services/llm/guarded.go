package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"news-agent/internal/config"
	"news-agent/internal/metrics"
	"news-agent/internal/resilience"
)

// NewClient builds the provider client selected by cfg and wraps it with a
// circuit breaker, a per-call timeout and metrics.
func NewClient(cfg config.LLMConfig) (Client, error) {
	var (
		inner Client
		err   error
	)

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		inner, err = NewOpenAIClient(cfg)
	case config.ProviderAnthropic:
		inner, err = NewAnthropicClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	provider := cfg.Provider
	if provider == "" {
		provider = config.ProviderOpenAI
	}

	return Guard(inner, provider, cfg.Timeout), nil
}

type guardedClient struct {
	next     Client
	provider string
	timeout  time.Duration
	breaker  *resilience.CircuitBreaker
}

// Guard wraps next so every call carries a deadline and passes through a
// circuit breaker. Malformed output is not a breaker failure.
func Guard(next Client, provider string, timeout time.Duration) Client {
	return &guardedClient{
		next:     next,
		provider: provider,
		timeout:  timeout,
		breaker:  resilience.NewCircuitBreaker(resilience.LLMConfig(provider)),
	}
}

func (g *guardedClient) Chat(ctx context.Context, messages []Message) (string, error) {
	var reply string
	err := g.call(ctx, "chat", func(ctx context.Context) error {
		var err error
		reply, err = g.next.Chat(ctx, messages)
		return err
	})
	return reply, err
}

func (g *guardedClient) ChatJSON(ctx context.Context, messages []Message, schema Schema, out any) error {
	return g.call(ctx, "json", func(ctx context.Context) error {
		return g.next.ChatJSON(ctx, messages, schema, out)
	})
}

func (g *guardedClient) call(ctx context.Context, kind string, fn func(ctx context.Context) error) error {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	var formatErr error
	err := g.breaker.Execute(func() error {
		err := fn(ctx)
		if errors.Is(err, ErrMalformedResponse) {
			formatErr = err
			return nil
		}
		return err
	})
	if err == nil {
		err = formatErr
	}

	metrics.LLMRequestDuration.WithLabelValues(g.provider, kind).Observe(time.Since(start).Seconds())
	metrics.LLMRequestsTotal.WithLabelValues(g.provider, kind, outcome(err)).Inc()

	if err != nil && !errors.Is(err, ErrMalformedResponse) {
		log.Error().
			Err(err).
			Str("provider", g.provider).
			Str("kind", kind).
			Dur("duration", time.Since(start)).
			Msg("LLM call failed")
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	default:
		return "error"
	}
}
