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

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/go-shiori/go-readability"
)

const (
	defaultFetchMaxChars = 10000
	maxFetchBody         = 4 << 20
)

// WebFetchTool fetches a URL and extracts readable content, optionally
// converted to markdown.
type WebFetchTool struct {
	client    *http.Client
	converter *md.Converter
	maxChars  int
}

// NewWebFetchTool creates the web_fetch tool.
func NewWebFetchTool() *WebFetchTool {
	return &WebFetchTool{
		client:    &http.Client{Timeout: 30 * time.Second},
		converter: md.NewConverter("", true, nil),
		maxChars:  defaultFetchMaxChars,
	}
}

func (t *WebFetchTool) Name() string { return "web_fetch" }

func (t *WebFetchTool) Description() string {
	return "Fetch a URL and extract its readable content as markdown or plain text."
}

func (t *WebFetchTool) Schema() json.RawMessage {
	return mustSchema(map[string]any{
		"type": "object",
		"properties": map[string]any{
			"url": map[string]any{
				"type":        "string",
				"description": "URL to fetch (http/https only).",
			},
			"extract_mode": map[string]any{
				"type":        "string",
				"enum":        []string{"markdown", "text"},
				"description": "Extraction mode. Default: markdown.",
			},
			"max_chars": map[string]any{
				"type":        "integer",
				"description": "Maximum characters to return (default: 10000).",
				"minimum":     0,
			},
		},
		"required": []string{"url"},
	})
}

func (t *WebFetchTool) Execute(ctx context.Context, params json.RawMessage) (*Result, error) {
	var input struct {
		URL         string `json:"url"`
		ExtractMode string `json:"extract_mode"`
		MaxChars    int    `json:"max_chars"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return errorResult(fmt.Sprintf("invalid parameters: %v", err)), nil
	}

	target, err := url.Parse(strings.TrimSpace(input.URL))
	if err != nil || (target.Scheme != "http" && target.Scheme != "https") {
		return errorResult("url must be an http or https URL"), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return errorResult(fmt.Sprintf("build request: %v", err)), nil
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; builder6/1.0)")

	resp, err := t.client.Do(req)
	if err != nil {
		return errorResult(fmt.Sprintf("fetch failed: %v", err)), nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errorResult(fmt.Sprintf("fetch returned status %d", resp.StatusCode)), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return errorResult(fmt.Sprintf("read body: %v", err)), nil
	}

	article, err := readability.FromReader(strings.NewReader(string(body)), target)
	if err != nil {
		return errorResult(fmt.Sprintf("extract content: %v", err)), nil
	}

	content := article.TextContent
	if input.ExtractMode == "" || input.ExtractMode == "markdown" {
		if converted, err := t.converter.ConvertString(article.Content); err == nil {
			content = converted
		}
	}

	maxChars := t.maxChars
	if input.MaxChars > 0 {
		maxChars = input.MaxChars
	}
	if len(content) > maxChars {
		content = content[:maxChars] + "\n...[truncated]"
	}

	if article.Title != "" {
		content = "# " + article.Title + "\n\n" + content
	}
	return &Result{Content: content}, nil
}
