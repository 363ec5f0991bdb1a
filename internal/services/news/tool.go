package news

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog/log"

	"news-agent/internal/metrics"
	"news-agent/internal/services/daterange"
)

const (
	// DefaultMaxArticles bounds how many articles reach the summarizer.
	DefaultMaxArticles = 10

	// NoArticlesText is the rendering of a report without articles.
	NoArticlesText = "No relevant articles found."
	// NoNewsText is the rendering of a report whose fetch failed.
	NoNewsText = "No relevant news was found for your request."

	msgToolFailed = "Failed to fetch or parse news data."
)

// FetchArgs are the inputs of one tool run. Empty dates fall back to the last
// seven days and empty languages to English.
type FetchArgs struct {
	Query          string `json:"query"`
	From           string `json:"from,omitempty"`
	To             string `json:"to,omitempty"`
	SourceLanguage string `json:"source_language,omitempty"`
	TargetLanguage string `json:"target_language,omitempty"`
}

// Report is what the summarizer receives.
type Report struct {
	Query      string    `json:"query"`
	SourceLang string    `json:"source_lang"`
	TargetLang string    `json:"target_lang"`
	From       string    `json:"from"`
	To         string    `json:"to"`
	Articles   []Article `json:"articles"`
	Count      int       `json:"count"`
	Error      string    `json:"error,omitempty"`
}

// Text renders the articles as the block of text handed to the model.
func (r Report) Text() string {
	if r.Error != "" {
		return NoNewsText
	}
	if len(r.Articles) == 0 {
		return NoArticlesText
	}

	blocks := make([]string, 0, len(r.Articles))
	for _, a := range r.Articles {
		blocks = append(blocks, fmt.Sprintf(
			"Title: %s\nDescription: %s\nSource: %s\nPublished At: %s\nURL: %s",
			a.Title, a.Description, a.Source, a.PublishedAt, a.URL,
		))
	}
	return strings.Join(blocks, "\n\n")
}

// JSON returns the indented JSON form of the report.
func (r Report) JSON() string {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// FetchTool validates tool arguments, runs the search and normalizes the
// result into a Report. It never fails; problems end up in Report.Error.
type FetchTool struct {
	fetcher     Fetcher
	now         func() time.Time
	maxArticles int
}

type ToolOption func(*FetchTool)

func WithToolClock(now func() time.Time) ToolOption {
	return func(t *FetchTool) {
		t.now = now
	}
}

func WithMaxArticles(n int) ToolOption {
	return func(t *FetchTool) {
		if n > 0 {
			t.maxArticles = n
		}
	}
}

func NewFetchTool(fetcher Fetcher, opts ...ToolOption) *FetchTool {
	t := &FetchTool{
		fetcher:     fetcher,
		now:         time.Now,
		maxArticles: DefaultMaxArticles,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *FetchTool) Run(ctx context.Context, args FetchArgs) (report Report) {
	now := t.now()
	source := langOrDefault(args.SourceLanguage)
	target := langOrDefault(args.TargetLanguage)
	query := strings.TrimSpace(args.Query)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Str("query", query).Msg("News fetch tool failed")
			report = t.errorReport(query, source, target, now)
		}
	}()

	if query == "" {
		log.Warn().Msg("News fetch tool called with an empty query")
		return t.errorReport(query, source, target, now)
	}

	defaults := daterange.Default(now)
	from := validDate(args.From, defaults.From, now.Location())
	to := validDate(args.To, defaults.To, now.Location())
	if from > to {
		log.Debug().Str("from", from).Str("to", to).Msg("Swapping inverted date range")
		from, to = to, from
	}

	res := t.fetcher.Fetch(ctx, Query{
		Q:        query,
		From:     from,
		To:       to,
		Language: source,
	})
	if !res.Success {
		log.Warn().
			Str("query", query).
			Int("code", res.Code).
			Str("message", res.Message).
			Msg("News search returned no usable result")
	}

	articles := res.Articles
	if len(articles) > t.maxArticles {
		articles = articles[:t.maxArticles]
	}
	if articles == nil {
		articles = []Article{}
	}
	metrics.ArticlesReturned.Observe(float64(len(articles)))

	return Report{
		Query:      query,
		SourceLang: source,
		TargetLang: target,
		From:       from,
		To:         to,
		Articles:   articles,
		Count:      len(articles),
	}
}

func (t *FetchTool) errorReport(query, source, target string, now time.Time) Report {
	defaults := daterange.Default(now)
	return Report{
		Query:      query,
		SourceLang: source,
		TargetLang: target,
		From:       defaults.From,
		To:         defaults.To,
		Articles:   []Article{},
		Error:      msgToolFailed,
	}
}

// validDate normalizes value to YYYY-MM-DD, or returns fallback when value is
// empty or unparseable.
func validDate(value, fallback string, loc *time.Location) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback
	}
	if t, err := time.ParseInLocation(daterange.Layout, value, loc); err == nil {
		return t.Format(daterange.Layout)
	}
	if t, err := dateparse.ParseIn(value, loc); err == nil {
		return t.Format(daterange.Layout)
	}
	log.Warn().Str("date", value).Str("fallback", fallback).Msg("Invalid date, using default")
	return fallback
}

func langOrDefault(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return "en"
	}
	return code
}
