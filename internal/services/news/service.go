// Package news talks to the external news search API and turns its results
// into the report the agent summarizes.
package news

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"

	"news-agent/internal/config"
	"news-agent/internal/metrics"
	"news-agent/internal/resilience"
)

const (
	defaultPageSize = 50
	maxBodyBytes    = 4 << 20
	maxLoggedBody   = 512
)

// Fetcher is implemented by Retriever and by test doubles.
type Fetcher interface {
	Fetch(ctx context.Context, q Query) Result
}

// Retriever queries the /everything endpoint of a NewsAPI-compatible service.
type Retriever struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	pageSize   int
	retry      resilience.RetryConfig
	breaker    *resilience.CircuitBreaker
}

type Option func(*Retriever)

// WithHTTPClient replaces the default client, which only carries the
// configured timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Retriever) {
		r.httpClient = c
	}
}

// WithBreaker replaces the default news API circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) Option {
	return func(r *Retriever) {
		r.breaker = cb
	}
}

func NewRetriever(cfg config.NewsConfig, opts ...Option) *Retriever {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}

	r := &Retriever{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		endpoint:   cfg.BaseURL + "/everything",
		apiKey:     cfg.APIKey,
		pageSize:   pageSize,
		retry: resilience.RetryConfig{
			Retries: cfg.Retries,
			Delay:   cfg.RetryDelay,
		},
		breaker: resilience.NewCircuitBreaker(resilience.NewsAPIConfig()),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch never returns an error: upstream and transport failures are reported
// in the Result envelope.
func (r *Retriever) Fetch(ctx context.Context, q Query) Result {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = r.pageSize
	}

	var payload apiResponse
	err := r.breaker.Execute(func() error {
		return resilience.Retry(ctx, r.retry, func() error {
			payload = apiResponse{}
			return r.get(ctx, q, pageSize, &payload)
		})
	})

	if err != nil {
		return r.failure(ctx, q, err)
	}

	articles := convertToArticles(payload.Articles, pageSize)
	metrics.NewsAPIRequestsTotal.WithLabelValues("success").Inc()

	log.Debug().
		Str("query", q.Q).
		Str("language", q.Language).
		Int("total_results", payload.TotalResults).
		Int("count", len(articles)).
		Msg("News API request succeeded")

	return Result{
		Success:  true,
		Articles: articles,
		Count:    len(articles),
	}
}

func (r *Retriever) get(ctx context.Context, q Query, pageSize int, out *apiResponse) error {
	params := url.Values{}
	params.Set("q", q.Q)
	params.Set("from", q.From)
	params.Set("to", q.To)
	params.Set("language", q.Language)
	params.Set("sortBy", "relevancy")
	params.Set("pageSize", strconv.Itoa(pageSize))
	params.Set("apiKey", r.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("failed to build news API request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		// the request URL carries the API key
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = r.endpoint
		}
		return fmt.Errorf("news API request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("failed to read news API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &resilience.HTTPError{StatusCode: resp.StatusCode, Body: truncate(string(body), maxLoggedBody)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode news API response: %w", err)
	}
	return nil
}

func (r *Retriever) failure(ctx context.Context, q Query, err error) Result {
	var httpErr *resilience.HTTPError
	switch {
	case errors.As(err, &httpErr):
		metrics.NewsAPIRequestsTotal.WithLabelValues("http_error").Inc()
		log.Warn().
			Str("query", q.Q).
			Int("status", httpErr.StatusCode).
			Str("body", httpErr.Body).
			Msg("News API request failed")
		return failedResult(MsgUpstreamFailed, httpErr.StatusCode, "")

	case errors.Is(err, resilience.ErrCircuitOpen):
		metrics.NewsAPIRequestsTotal.WithLabelValues("circuit_open").Inc()
		log.Warn().Str("query", q.Q).Msg("News API circuit open, skipping request")
		return failedResult(MsgUpstreamFailed, http.StatusServiceUnavailable, err.Error())

	case ctx.Err() != nil:
		metrics.NewsAPIRequestsTotal.WithLabelValues("canceled").Inc()
		log.Warn().Err(err).Str("query", q.Q).Msg("News API request cancelled")
		return failedResult(MsgUnexpected, 0, err.Error())

	case resilience.IsTransportTimeout(err):
		metrics.NewsAPIRequestsTotal.WithLabelValues("timeout").Inc()
		log.Warn().Err(err).Str("query", q.Q).Dur("timeout", r.httpClient.Timeout).Msg("News API request timed out")
		return failedResult(MsgUnexpected, 0, err.Error())

	default:
		metrics.NewsAPIRequestsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("query", q.Q).Msg("News API fetch error")
		return failedResult(MsgUnexpected, 0, err.Error())
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

var _ Fetcher = (*Retriever)(nil)
