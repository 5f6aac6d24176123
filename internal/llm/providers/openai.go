package providers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pkoukk/tiktoken-go"
	openai "github.com/sashabaranov/go-openai"

	"github.com/builder6/builder6/internal/llm"
	"github.com/builder6/builder6/pkg/models"
)

const defaultOpenAIModel = "gpt-4o"

// OpenAIProvider is the openai-like backend.
type OpenAIProvider struct {
	client       *openai.Client
	defaultModel string
}

// NewOpenAIProvider creates the provider from an API key.
func NewOpenAIProvider(apiKey, defaultModel string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	if defaultModel == "" {
		defaultModel = defaultOpenAIModel
	}
	return &OpenAIProvider{
		client:       openai.NewClient(apiKey),
		defaultModel: defaultModel,
	}, nil
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) DefaultModel() string { return p.defaultModel }

// CountTokens tokenizes with the model's tiktoken encoding. Unknown models
// fall back to the runner's character heuristic.
func (p *OpenAIProvider) CountTokens(model, prompt string) (int, bool) {
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return 0, false
	}
	return len(encoding.Encode(prompt, nil, nil)), true
}

// Generate issues a single chat-completion request. JSON mode uses the
// native json_object response format.
func (p *OpenAIProvider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	chatReq := openai.ChatCompletionRequest{
		Model: req.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
	}

	completion, err := p.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		return nil, err
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("openai: empty completion")
	}

	choice := completion.Choices[0].Message
	resp := &llm.Response{
		Content:  choice.Content,
		Provider: p.Name(),
		Model:    req.Model,
		Usage: &llm.Usage{
			InputTokens:  completion.Usage.PromptTokens,
			OutputTokens: completion.Usage.CompletionTokens,
		},
	}

	for _, call := range choice.ToolCalls {
		resp.ToolCalls = append(resp.ToolCalls, models.ToolCall{
			ID:        call.ID,
			Name:      call.Function.Name,
			Arguments: json.RawMessage(call.Function.Arguments),
		})
	}
	return resp, nil
}
