package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/builder6/builder6/internal/llm"
	"github.com/builder6/builder6/pkg/models"
)

const defaultGeminiModel = "gemini-1.5-pro"

// GoogleProvider is the gemini-like backend.
type GoogleProvider struct {
	client       *genai.Client
	defaultModel string
}

// NewGoogleProvider creates the provider against the Gemini API backend.
func NewGoogleProvider(ctx context.Context, apiKey, defaultModel string) (*GoogleProvider, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	if defaultModel == "" {
		defaultModel = defaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &GoogleProvider{client: client, defaultModel: defaultModel}, nil
}

func (p *GoogleProvider) Name() string { return "gemini" }

func (p *GoogleProvider) DefaultModel() string { return p.defaultModel }

// CountTokens has no local tokenizer for Gemini models; the runner falls
// back to the character heuristic.
func (p *GoogleProvider) CountTokens(model, prompt string) (int, bool) {
	return 0, false
}

// Generate issues a single generate-content request. JSON mode requests an
// application/json response MIME type.
func (p *GoogleProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	config := &genai.GenerateContentConfig{}
	if req.JSONMode {
		config.ResponseMIMEType = "application/json"
	}
	if len(req.Tools) > 0 {
		config.Tools = toGeminiTools(req.Tools)
	}

	result, err := p.client.Models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), config)
	if err != nil {
		return nil, err
	}
	if len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return nil, errors.New("gemini: empty response")
	}

	resp := &llm.Response{
		Provider: p.Name(),
		Model:    req.Model,
	}
	if usage := result.UsageMetadata; usage != nil {
		resp.Usage = &llm.Usage{
			InputTokens:  int(usage.PromptTokenCount),
			OutputTokens: int(usage.CandidatesTokenCount),
		}
	}

	for i, part := range result.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if part.Text != "" {
			resp.Content += part.Text
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, fmt.Errorf("gemini: encode function call args: %w", err)
			}
			id := part.FunctionCall.ID
			if id == "" {
				id = fmt.Sprintf("call_%d", i+1)
			}
			resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
				ID:        id,
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}
	return resp, nil
}
