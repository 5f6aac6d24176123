package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWebFetchToolExtractsContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><title>Release Notes</title></head><body>
			<article>
				<h1>Release Notes</h1>
				<p>Version 2 adds container quotas and a refreshed planner.</p>
				<p>Upgrade by pulling the latest image.</p>
			</article>
		</body></html>`))
	}))
	defer server.Close()

	tool := NewWebFetchTool()
	result, err := tool.Execute(context.Background(), mustJSON(t, map[string]any{
		"url":          server.URL,
		"extract_mode": "text",
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}
	if !strings.Contains(result.Content, "container quotas") {
		t.Fatalf("content missing article text: %q", result.Content)
	}
	if !strings.Contains(result.Content, "# Release Notes") {
		t.Fatalf("content missing title heading: %q", result.Content)
	}
}

func TestWebFetchToolTruncates(t *testing.T) {
	long := strings.Repeat("builder words here. ", 200)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html><body><article><p>" + long + "</p></article></body></html>"))
	}))
	defer server.Close()

	tool := NewWebFetchTool()
	result, err := tool.Execute(context.Background(), mustJSON(t, map[string]any{
		"url":       server.URL,
		"max_chars": 50,
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(result.Content, "...[truncated]") {
		t.Fatalf("expected truncation marker: %q", result.Content)
	}
}

func TestWebFetchToolRejectsBadScheme(t *testing.T) {
	tool := NewWebFetchTool()
	result, err := tool.Execute(context.Background(), mustJSON(t, map[string]any{
		"url": "ftp://example.com/file",
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for non-http scheme")
	}
}

func TestWebFetchToolStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	tool := NewWebFetchTool()
	result, err := tool.Execute(context.Background(), mustJSON(t, map[string]any{"url": server.URL}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError || !strings.Contains(result.Content, "404") {
		t.Fatalf("expected 404 error result, got %+v", result)
	}
}

func TestWebSearchToolResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("q"); got != "golang containers" {
			t.Errorf("query = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"Heading": "Container",
			"AbstractText": "A container is an isolated runtime environment.",
			"AbstractURL": "https://example.com/container",
			"RelatedTopics": [
				{"FirstURL": "https://example.com/docker", "Text": "Docker - container runtime"},
				{"FirstURL": "https://example.com/oci", "Text": "OCI - open container initiative"}
			]
		}`))
	}))
	defer server.Close()

	tool := NewWebSearchTool()
	tool.baseURL = server.URL

	result, err := tool.Execute(context.Background(), mustJSON(t, map[string]any{
		"query":        "golang containers",
		"result_count": 2,
	}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", result.Content)
	}

	var payload struct {
		Query   string         `json:"query"`
		Results []searchResult `json:"results"`
	}
	if err := json.Unmarshal([]byte(result.Content), &payload); err != nil {
		t.Fatalf("parse payload: %v", err)
	}
	if payload.Query != "golang containers" {
		t.Fatalf("query = %q", payload.Query)
	}
	if len(payload.Results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(payload.Results))
	}
	if payload.Results[0].URL != "https://example.com/container" {
		t.Fatalf("first result = %+v", payload.Results[0])
	}
}

func TestWebSearchToolRequiresQuery(t *testing.T) {
	tool := NewWebSearchTool()
	result, err := tool.Execute(context.Background(), mustJSON(t, map[string]any{"query": "  "}))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for empty query")
	}
}

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	payload, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	return payload
}
