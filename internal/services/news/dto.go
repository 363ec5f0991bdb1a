package news

import "strings"

// Article is the normalized shape of one search hit.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	PublishedAt string `json:"published_at"`
	URL         string `json:"url"`
}

// Query describes one search against the news API.
type Query struct {
	Q        string
	From     string
	To       string
	Language string
	PageSize int
}

// Result is the envelope returned by Retriever.Fetch. It is never nil and
// Articles is never nil, so failures can be handed straight to callers.
type Result struct {
	Success  bool      `json:"success"`
	Articles []Article `json:"articles"`
	Count    int       `json:"count"`
	Message  string    `json:"message,omitempty"`
	Code     int       `json:"code,omitempty"`
	Error    string    `json:"error,omitempty"`
}

// Common result messages
const (
	MsgUpstreamFailed = "Unable to fetch articles from news API."
	MsgUnexpected     = "An unexpected error occurred while fetching news."
)

// apiResponse mirrors the /everything response body.
type apiResponse struct {
	Status       string       `json:"status"`
	TotalResults int          `json:"totalResults"`
	Articles     []apiArticle `json:"articles"`
}

type apiArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

func convertToArticle(a apiArticle) Article {
	source := strings.TrimSpace(a.Source.Name)
	if source == "" {
		source = "Unknown"
	}
	return Article{
		Title:       strings.TrimSpace(a.Title),
		Description: strings.TrimSpace(a.Description),
		Source:      source,
		PublishedAt: a.PublishedAt,
		URL:         a.URL,
	}
}

// convertToArticles drops hits that carry neither a title nor a description
// and keeps at most limit articles.
func convertToArticles(raw []apiArticle, limit int) []Article {
	articles := make([]Article, 0, min(len(raw), limit))
	for _, a := range raw {
		if len(articles) == limit {
			break
		}
		article := convertToArticle(a)
		if article.Title == "" && article.Description == "" {
			continue
		}
		articles = append(articles, article)
	}
	return articles
}

func failedResult(message string, code int, detail string) Result {
	return Result{
		Success:  false,
		Articles: []Article{},
		Message:  message,
		Code:     code,
		Error:    detail,
	}
}
