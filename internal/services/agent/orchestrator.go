// Package agent runs the NewsSense pipeline: classify the message, detect the
// language pair, resolve the date range, fetch news and summarize it.
package agent

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"news-agent/internal/metrics"
	"news-agent/internal/repo"
	"news-agent/internal/services/daterange"
	"news-agent/internal/services/language"
	"news-agent/internal/services/llm"
	"news-agent/internal/services/news"
)

// Category is the outcome of the classification step.
type Category string

const (
	CategoryConversational Category = "conversational"
	CategoryAboutAgent     Category = "about_agent"
	CategoryAbusive        Category = "abusive"
	CategoryNewsRequest    Category = "news_request"
)

func (c Category) valid() bool {
	switch c {
	case CategoryConversational, CategoryAboutAgent, CategoryAbusive, CategoryNewsRequest:
		return true
	}
	return false
}

// Run statuses
const (
	StatusOK         = "ok"
	StatusNoArticles = "no_articles"
	StatusDegraded   = "degraded"
	StatusCanceled   = "canceled"
)

const recordTimeout = 5 * time.Second

type LanguageDetector interface {
	Detect(ctx context.Context, text string) language.Result
}

type DateResolver interface {
	Resolve(text string) daterange.Range
}

type NewsTool interface {
	Run(ctx context.Context, args news.FetchArgs) news.Report
}

// RunRecorder persists run metadata. repo.RunRepository implements it.
type RunRecorder interface {
	RecordRun(ctx context.Context, run repo.Run) error
}

// Outcome is the result of one pipeline run.
type Outcome struct {
	RunID      string         `json:"run_id"`
	Input      string         `json:"input"`
	Category   Category       `json:"category"`
	SourceLang string         `json:"source_lang,omitempty"`
	TargetLang string         `json:"target_lang,omitempty"`
	Intent     string         `json:"intent,omitempty"`
	From       string         `json:"from,omitempty"`
	To         string         `json:"to,omitempty"`
	Articles   []news.Article `json:"articles"`
	Reply      string         `json:"reply"`
	Status     string         `json:"status"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
}

// Orchestrator holds no per-request state and is safe for concurrent use.
type Orchestrator struct {
	llm      llm.Client
	detector LanguageDetector
	dates    DateResolver
	tool     NewsTool
	recorder RunRecorder
}

type Option func(*Orchestrator)

// WithRecorder enables the run audit log.
func WithRecorder(r RunRecorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

func NewOrchestrator(client llm.Client, detector LanguageDetector, dates DateResolver, tool NewsTool, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		llm:      client,
		detector: detector,
		dates:    dates,
		tool:     tool,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run only returns an error when ctx is cancelled; every other failure is
// folded into the Outcome.
func (o *Orchestrator) Run(ctx context.Context, text string) (*Outcome, error) {
	start := time.Now()
	out := &Outcome{
		RunID:    uuid.NewString(),
		Input:    strings.TrimSpace(text),
		Articles: []news.Article{},
		Status:   StatusOK,
	}

	err := o.run(ctx, out)
	out.Duration = time.Since(start)

	if err != nil {
		out.Status = StatusCanceled
		out.Error = err.Error()
	}
	o.finish(ctx, out)

	if err != nil {
		return nil, err
	}
	return out, nil
}

func (o *Orchestrator) run(ctx context.Context, out *Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if out.Input == "" {
		out.Category = CategoryConversational
		out.Reply = GreetingReply
		return nil
	}

	category, reply := o.classify(ctx, out.Input)
	if err := ctx.Err(); err != nil {
		return err
	}
	out.Category = category

	if category != CategoryNewsRequest {
		out.Reply = firstNonEmpty(sanitize(reply), cannedReply(category))
		return nil
	}

	return o.fetchAndSummarize(ctx, out)
}

func (o *Orchestrator) classify(ctx context.Context, text string) (Category, string) {
	defer metrics.ObserveStage("classify", time.Now())

	var res struct {
		Category string `json:"category"`
		Reply    string `json:"reply"`
	}
	err := o.llm.ChatJSON(ctx, []llm.Message{
		llm.System(classifierPrompt),
		llm.User(text),
	}, classifySchema, &res)
	if err != nil {
		log.Warn().Err(err).Msg("Message classification failed, treating as news request")
		return CategoryNewsRequest, ""
	}

	category := Category(strings.ToLower(strings.TrimSpace(res.Category)))
	if !category.valid() {
		log.Warn().Str("category", res.Category).Msg("Unknown message category, treating as news request")
		return CategoryNewsRequest, ""
	}
	return category, res.Reply
}

func (o *Orchestrator) fetchAndSummarize(ctx context.Context, out *Outcome) error {
	stage := time.Now()
	lang := o.detector.Detect(ctx, out.Input)
	metrics.ObserveStage("detect_language", stage)
	if err := ctx.Err(); err != nil {
		return err
	}

	out.SourceLang = lang.SourceLang
	out.TargetLang = lang.TargetLang
	out.Intent = lang.Intent
	if lang.Error != nil {
		log.Warn().Int("code", lang.Error.Code).Str("message", lang.Error.Message).Msg("Language detection failed, continuing with defaults")
		out.Intent = out.Input
	}
	if out.Intent == "" {
		out.Intent = out.Input
	}

	stage = time.Now()
	rng := o.dates.Resolve(out.Intent)
	metrics.ObserveStage("parse_dates", stage)
	out.From, out.To = rng.From, rng.To

	stage = time.Now()
	report := o.tool.Run(ctx, news.FetchArgs{
		Query:          out.Intent,
		From:           rng.From,
		To:             rng.To,
		SourceLanguage: out.SourceLang,
		TargetLanguage: out.TargetLang,
	})
	metrics.ObserveStage("fetch_news", stage)
	if err := ctx.Err(); err != nil {
		return err
	}

	out.From, out.To = report.From, report.To
	out.Articles = report.Articles

	if len(report.Articles) == 0 {
		out.Status = StatusNoArticles
		out.Reply = NoNewsReply
		if report.Error != "" {
			out.Error = report.Error
		}
		return nil
	}

	stage = time.Now()
	summary, err := o.llm.Chat(ctx, summarizerMessages(out.Input, out.Intent, report))
	metrics.ObserveStage("summarize", stage)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		log.Error().Err(err).Str("run_id", out.RunID).Msg("Summarization failed")
		out.Status = StatusDegraded
		out.Error = "summarization failed: " + err.Error()
		out.Reply = NoNewsReply
		return nil
	}

	out.Reply = sanitize(summary)
	if out.Reply == "" {
		out.Status = StatusDegraded
		out.Error = llm.ErrEmptyResponse.Error()
		out.Reply = NoNewsReply
	}
	return nil
}

func (o *Orchestrator) finish(ctx context.Context, out *Outcome) {
	category := string(out.Category)
	if category == "" {
		category = "unknown"
	}
	metrics.PipelineRunsTotal.WithLabelValues(category, out.Status).Inc()

	log.Info().
		Str("run_id", out.RunID).
		Str("category", category).
		Str("status", out.Status).
		Str("source_lang", out.SourceLang).
		Str("target_lang", out.TargetLang).
		Int("articles", len(out.Articles)).
		Dur("duration", out.Duration).
		Msg("Agent run completed")

	if o.recorder == nil {
		return
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	err := o.recorder.RecordRun(recordCtx, repo.Run{
		ID:           out.RunID,
		Category:     category,
		SourceLang:   out.SourceLang,
		TargetLang:   out.TargetLang,
		FromDate:     out.From,
		ToDate:       out.To,
		ArticleCount: len(out.Articles),
		Status:       out.Status,
		Error:        out.Error,
		Duration:     out.Duration,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn().Err(err).Str("run_id", out.RunID).Msg("Failed to record agent run")
	}
}

var (
	headingPrefix = regexp.MustCompile(`^#{1,6}\s+`)
	bulletPrefix  = regexp.MustCompile(`^(?:[-*+•]|\d+[.)])\s+`)
	emphasis      = regexp.MustCompile("\\*\\*|__|`")
	singleStar    = regexp.MustCompile(`(^|\s)\*([^*\s][^*]*?)\*`)
)

// sanitize turns model output into plain prose: markdown headings, bullets
// and emphasis are removed, blank lines collapsed and the text capped at
// maxSummaryLines lines.
func sanitize(s string) string {
	var lines []string
	for _, line := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		line = strings.TrimSpace(line)
		line = headingPrefix.ReplaceAllString(line, "")
		line = bulletPrefix.ReplaceAllString(line, "")
		line = emphasis.ReplaceAllString(line, "")
		line = singleStar.ReplaceAllString(line, "$1$2")
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
		if len(lines) == maxSummaryLines {
			break
		}
	}
	return strings.Join(lines, "\n")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
