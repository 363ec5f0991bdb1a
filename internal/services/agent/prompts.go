package agent

import (
	"fmt"
	"strings"

	"news-agent/internal/services/llm"
	"news-agent/internal/services/news"
)

// Canned replies used when the model gives no usable text.
const (
	GreetingReply   = "Hello! I'm NewsSense, your multilingual news agent. Ask me about world events, politics, business, sports or any topic you'd like summarized, in the language of your choice."
	AboutAgentReply = "I'm NewsSense, a multilingual AI news agent. I find the latest news on any topic and date range, then summarize it in your preferred language so you stay informed effortlessly."
	AbusiveReply    = "I'm here to help summarize and discuss news topics. Let's keep things respectful. What kind of news would you like me to summarize for you today?"

	// NoNewsReply is returned verbatim whenever no article could be found.
	NoNewsReply = "No relevant news was found for your request."
)

const maxSummaryLines = 10

const classifierPrompt = `You are the front desk of "NewsSense", a multilingual news summarizer agent.
Classify the user's message into exactly one category:
- "conversational": greetings or small talk such as "hello", "hi", "good morning", "how are you".
- "about_agent": questions about you, such as "who are you", "what can you do", "who built you".
- "abusive": insults, swearing or offensive language.
- "news_request": anything asking for news, events, headlines or a summary of a topic.

For every category except "news_request", write a short, polite reply in the user's language:
- conversational: greet the user and explain that you can summarize news on any topic in their language.
- about_agent: describe yourself briefly as a news summarizer AI.
- abusive: stay calm, do not respond in kind, and steer back to news topics.
For "news_request" leave reply empty.`

var classifySchema = llm.Schema{
	Name:        "message_category",
	Description: "Category of the user's message and, for non-news messages, the reply to send.",
	Properties: map[string]any{
		"category": map[string]any{
			"type": "string",
			"enum": []string{
				string(CategoryConversational),
				string(CategoryAboutAgent),
				string(CategoryAbusive),
				string(CategoryNewsRequest),
			},
		},
		"reply": map[string]any{
			"type":        "string",
			"description": "Reply for non-news messages; empty for news requests.",
		},
	},
}

const summarizerPrompt = `You are "NewsSense", a multilingual news summarizer.
You receive the user's request, the detected languages, the date range and a list of news articles.

Rules:
- Write the summary in the language with ISO 639-1 code %q.
- Focus the summary on the user's request.
- Keep it fluent and human-like, at most 10 lines.
- Do not use bullet points, markdown or lists. Return plain text only.
- If the articles do not answer the request, reply exactly: "` + NoNewsReply + `"`

func summarizerMessages(input, intent string, report news.Report) []llm.Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Request: %s\n", input)
	fmt.Fprintf(&b, "Intent: %s\n", intent)
	fmt.Fprintf(&b, "Source language: %s\n", report.SourceLang)
	fmt.Fprintf(&b, "Target language: %s\n", report.TargetLang)
	fmt.Fprintf(&b, "From: %s\nTo: %s\n\n", report.From, report.To)
	b.WriteString("Articles:\n")
	b.WriteString(report.Text())

	return []llm.Message{
		llm.System(fmt.Sprintf(summarizerPrompt, report.TargetLang)),
		llm.User(b.String()),
	}
}

func cannedReply(c Category) string {
	switch c {
	case CategoryAboutAgent:
		return AboutAgentReply
	case CategoryAbusive:
		return AbusiveReply
	default:
		return GreetingReply
	}
}
