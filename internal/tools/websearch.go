package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultSearchResults = 5

// WebSearchTool answers web search queries through the DuckDuckGo Instant
// Answer API, which needs no credential.
type WebSearchTool struct {
	client  *http.Client
	baseURL string
}

// NewWebSearchTool creates the google_web_search tool.
func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		client:  &http.Client{Timeout: 15 * time.Second},
		baseURL: "https://api.duckduckgo.com",
	}
}

func (t *WebSearchTool) Name() string { return "google_web_search" }

func (t *WebSearchTool) Description() string {
	return "Search the web and return a list of results with title, URL, and snippet."
}

func (t *WebSearchTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Search query.",
			},
			"result_count": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results (default: 5).",
				"minimum":     1,
			},
		},
		"required": []string{"query"},
	})
}

type searchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

func (t *WebSearchTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		Query       string `json:"query"`
		ResultCount int    `json:"result_count"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return errorResult("query is required"), nil
	}
	count := input.ResultCount
	if count <= 0 {
		count = defaultSearchResults
	}

	endpoint := fmt.Sprintf("%s/?q=%s&format=json&no_html=1", t.baseURL, url.QueryEscape(query))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errorResult(fmt.Sprintf("build request: %v", err)), nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; builder6/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return errorResult(fmt.Sprintf("search failed: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorResult(fmt.Sprintf("search returned status %d", resp.StatusCode)), nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errorResult(fmt.Sprintf("read response: %v", err)), nil
	}

	var ddg struct {
		AbstractText  string `json:"AbstractText"`
		AbstractURL   string `json:"AbstractURL"`
		Heading       string `json:"Heading"`
		RelatedTopics []struct {
			FirstURL string `json:"FirstURL"`
			Text     string `json:"Text"`
		} `json:"RelatedTopics"`
	}
	if err := json.Unmarshal(body, &ddg); err != nil {
		return errorResult(fmt.Sprintf("parse response: %v", err)), nil
	}

	results := make([]searchResult, 0, count)
	if ddg.AbstractText != "" && ddg.AbstractURL != "" {
		results = append(results, searchResult{
			Title:   ddg.Heading,
			URL:     ddg.AbstractURL,
			Snippet: ddg.AbstractText,
		})
	}
	for _, topic := range ddg.RelatedTopics {
		if len(results) >= count {
			break
		}
		if topic.FirstURL == "" || topic.Text == "" {
			continue
		}
		title := topic.Text
		if len(title) > 100 {
			title = title[:100]
		}
		results = append(results, searchResult{Title: title, URL: topic.FirstURL, Snippet: topic.Text})
	}

	payload, err := json.MarshalIndent(map[string]any{
		"query":   query,
		"results": results,
	}, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("encode results: %v", err)), nil
	}
	return &Result{Content: string(payload)}, nil
}
