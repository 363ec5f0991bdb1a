// Package language works out which language a request is written in, which
// language the answer should be in, and what the user is actually asking for.
package language

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	"news-agent/internal/services/llm"
)

const (
	// DefaultLang is used whenever a language cannot be determined.
	DefaultLang = "en"

	errCodeDetection = 400
	msgEmptyInput    = "Text input cannot be empty."
	msgDetectFailed  = "Failed to detect language or intent."
)

// Result is the detected language pair and the request with any language
// instructions removed.
type Result struct {
	SourceLang string       `json:"source_lang"`
	TargetLang string       `json:"target_lang"`
	Intent     string       `json:"intent"`
	Error      *DetectError `json:"error,omitempty"`
}

// DetectError is attached to a Result when detection could not run at all.
type DetectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type keyword struct {
	name string
	code string
}

// keywords is scanned in order; the first whole-word match wins.
var keywords = []keyword{
	{"chinese", "zh"},
	{"japanese", "ja"},
	{"french", "fr"},
	{"spanish", "es"},
	{"german", "de"},
	{"igbo", "ig"},
	{"yoruba", "yo"},
	{"hausa", "ha"},
	{"arabic", "ar"},
	{"portuguese", "pt"},
	{"italian", "it"},
	{"russian", "ru"},
	{"hindi", "hi"},
	{"korean", "ko"},
	{"swahili", "sw"},
	{"english", "en"},
}

type compiledKeyword struct {
	keyword
	match *regexp.Regexp
	strip *regexp.Regexp
}

var compiledKeywords = compileKeywords(keywords)

var langCodePattern = regexp.MustCompile(`^[a-z]{2}$`)

var intentSchema = llm.Schema{
	Name:        "language_intent",
	Description: "Source language, requested answer language and the news request without language instructions.",
	Properties: map[string]any{
		"source_lang": map[string]any{
			"type":        "string",
			"description": "Two-letter ISO 639-1 code of the language the message is written in.",
		},
		"target_lang": map[string]any{
			"type":        "string",
			"description": "Two-letter ISO 639-1 code of the language the answer must be written in. Equal to source_lang when no translation is requested.",
		},
		"intent": map[string]any{
			"type":        "string",
			"description": "The news request itself, without any translation or language instructions.",
		},
	},
}

const detectorPrompt = `You are a language and intent detector.
Analyze the user's message and return its source language, the target language of the answer, and the intent.

Rules:
- Always use two-letter ISO 639-1 codes.
- If no target translation is requested, set target_lang = source_lang.
- The intent is the news request itself, e.g. "get global economy news from last week".`

// Detector determines the language pair and intent of a message, first by
// keyword and then by asking the model.
type Detector struct {
	llm llm.Client
}

func NewDetector(client llm.Client) *Detector {
	return &Detector{llm: client}
}

// Detect always returns a usable Result. Failures never propagate as errors;
// when even the model fallback cannot run the Result carries Error.
func (d *Detector) Detect(ctx context.Context, text string) Result {
	text = strings.TrimSpace(text)
	if text == "" {
		return errorResult(msgEmptyInput)
	}

	if res, ok := detectKeyword(text); ok {
		return res
	}

	return d.detectWithModel(ctx, text)
}

func detectKeyword(text string) (Result, bool) {
	lower := strings.ToLower(text)
	for _, kw := range compiledKeywords {
		if !kw.match.MatchString(lower) {
			continue
		}
		return Result{
			SourceLang: DefaultLang,
			TargetLang: kw.code,
			Intent:     stripLanguageMentions(text, kw.strip),
		}, true
	}
	return Result{}, false
}

func (d *Detector) detectWithModel(ctx context.Context, text string) Result {
	if d.llm == nil {
		return errorResult(msgDetectFailed)
	}

	var out struct {
		SourceLang string `json:"source_lang"`
		TargetLang string `json:"target_lang"`
		Intent     string `json:"intent"`
	}

	err := d.llm.ChatJSON(ctx, []llm.Message{
		llm.System(detectorPrompt),
		llm.User(fmt.Sprintf("Message: %q", text)),
	}, intentSchema, &out)

	switch {
	case errors.Is(err, llm.ErrMalformedResponse):
		log.Warn().Err(err).Str("text", text).Msg("Language detector got a malformed model response")
		return Result{SourceLang: DefaultLang, TargetLang: DefaultLang, Intent: text}
	case err != nil:
		log.Error().Err(err).Str("text", text).Msg("Language detection failed")
		return errorResult(msgDetectFailed)
	}

	source := normalizeCode(out.SourceLang, DefaultLang)
	return Result{
		SourceLang: source,
		TargetLang: normalizeCode(out.TargetLang, source),
		Intent:     firstNonEmpty(strings.TrimSpace(out.Intent), text),
	}
}

// stripLanguageMentions removes "in French", "translate to French" and similar
// phrases, then tidies the leftover punctuation.
func stripLanguageMentions(text string, strip *regexp.Regexp) string {
	stripped := strip.ReplaceAllString(text, "")
	stripped = strings.Join(strings.Fields(stripped), " ")
	stripped = strings.TrimRight(stripped, " ,;:.!-")
	stripped = strings.TrimSpace(stripped)
	if stripped == "" {
		return text
	}
	return stripped
}

func compileKeywords(list []keyword) []compiledKeyword {
	out := make([]compiledKeyword, 0, len(list))
	for _, kw := range list {
		name := regexp.QuoteMeta(kw.name)
		out = append(out, compiledKeyword{
			keyword: kw,
			match:   regexp.MustCompile(`\b` + name + `\b`),
			strip: regexp.MustCompile(
				`(?i)(?:[,;]?\s*(?:and\s+)?(?:please\s+)?(?:translated?|translation)\s+(?:it\s+|this\s+)?(?:to|into)` +
					`|\b(?:in\s+the|en\s+la|in|en))\s*` + name + `\b`,
			),
		})
	}
	return out
}

func normalizeCode(code, fallback string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if langCodePattern.MatchString(code) {
		return code
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func errorResult(message string) Result {
	return Result{
		SourceLang: DefaultLang,
		TargetLang: DefaultLang,
		Intent:     "",
		Error: &DetectError{
			Code:    errCodeDetection,
			Message: message,
		},
	}
}
