package llm

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"github.com/builder6/builder6/internal/config"
	"github.com/builder6/builder6/internal/metrics"
	"github.com/builder6/builder6/internal/tools"
	"github.com/builder6/builder6/pkg/errkind"
	"github.com/builder6/builder6/pkg/models"
)

// RetryPolicy governs the runner's handling of transient upstream failure.
type RetryPolicy struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryPolicy mirrors the documented configuration defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:    10,
		InitialDelay:  1000 * time.Millisecond,
		MaxDelay:      10000 * time.Millisecond,
		BackoffFactor: 2,
	}
}

// PolicyFromConfig extracts the retry policy from the validated config.
func PolicyFromConfig(cfg *config.Config) RetryPolicy {
	return RetryPolicy{
		MaxRetries:    cfg.LLMMaxRetries,
		InitialDelay:  cfg.LLMInitialRetryDelay,
		MaxDelay:      cfg.LLMMaxRetryDelay,
		BackoffFactor: cfg.LLMRetryBackoffFactor,
	}
}

// maxJitter bounds the uniform random jitter added to each backoff delay.
const maxJitter = 1000 * time.Millisecond

// preventiveDelayCap bounds the small smoothing delay preceding each retry.
const preventiveDelayCap = 100 * time.Millisecond

// warnThreshold is the fraction of the token limit past which a generation
// logs a non-fatal warning.
const warnThreshold = 0.8

// Service is the provider-agnostic model runner. All generation entry points
// validate prompt size pre-flight and share one retry loop.
type Service struct {
	provider Provider
	registry *tools.Registry
	policy   RetryPolicy
	logger   *slog.Logger

	// Injection points for deterministic tests.
	sleep  func(time.Duration)
	jitter func() time.Duration
}

// NewService creates a model runner over the given provider. registry may be
// nil when tool dispatch is not needed.
func NewService(provider Provider, registry *tools.Registry, policy RetryPolicy, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.BackoffFactor < 1 {
		policy.BackoffFactor = 1
	}
	return &Service{
		provider: provider,
		registry: registry,
		policy:   policy,
		logger:   logger,
		sleep:    time.Sleep,
		jitter:   func() time.Duration { return time.Duration(rand.Int63n(int64(maxJitter))) },
	}
}

// Policy returns the runner's retry policy.
func (s *Service) Policy() RetryPolicy { return s.policy }

// ProviderName returns the active provider identifier.
func (s *Service) ProviderName() string { return s.provider.Name() }

// GenerateContent generates plain text for a prompt using the provider's
// default model.
func (s *Service) GenerateContent(ctx context.Context, prompt string) (string, error) {
	resp, err := s.Generate(ctx, &Request{Prompt: prompt})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateResponse generates text and returns the full response envelope
// (content, provider, model, usage).
func (s *Service) GenerateResponse(ctx context.Context, prompt string) (*Response, error) {
	return s.Generate(ctx, &Request{Prompt: prompt})
}

// GenerateJSON generates a structured value. The response is parsed as JSON;
// if the model fenced the document inside a markdown code span, the fence is
// stripped and the inner text re-parsed.
func (s *Service) GenerateJSON(ctx context.Context, prompt string) (any, error) {
	resp, err := s.Generate(ctx, &Request{Prompt: prompt, JSONMode: true})
	if err != nil {
		return nil, err
	}

	var value any
	if err := json.Unmarshal([]byte(StripJSONFence(resp.Content)), &value); err != nil {
		return nil, errkind.Wrap(errkind.PlanParseFailed, err, "model response is not valid JSON")
	}
	return value, nil
}

// GenerateWithTools generates with the registry's tools declared to the
// provider. The response may carry content, tool calls, or both.
func (s *Service) GenerateWithTools(ctx context.Context, prompt string) (*Response, error) {
	req := &Request{Prompt: prompt}
	if s.registry != nil {
		req.Tools = s.registry.List()
	}
	return s.Generate(ctx, req)
}

// ExecuteToolCalls dispatches each call through the registry. Dispatch
// failures (unknown tool, invalid arguments, tool errors) are captured as
// structured {"error": message} payloads inside the corresponding result
// rather than aborting the batch.
func (s *Service) ExecuteToolCalls(ctx context.Context, calls []models.ToolCall) ([]models.ToolCallResult, error) {
	if s.registry == nil {
		return nil, errkind.New(errkind.Internal, "no tool registry configured")
	}

	results := make([]models.ToolCallResult, 0, len(calls))
	for _, call := range calls {
		result, err := s.registry.Execute(ctx, call.Name, call.Arguments)
		switch {
		case err != nil:
			payload, _ := json.Marshal(map[string]string{"error": err.Error()})
			results = append(results, models.ToolCallResult{
				ToolCallID: call.ID,
				Content:    string(payload),
				IsError:    true,
			})
		default:
			results = append(results, models.ToolCallResult{
				ToolCallID: call.ID,
				Content:    result.Content,
				IsError:    result.IsError,
			})
		}
	}
	return results, nil
}

// Generate runs one validated, retried generation request.
func (s *Service) Generate(ctx context.Context, req *Request) (*Response, error) {
	model := req.Model
	if model == "" {
		model = s.provider.DefaultModel()
	}

	if err := s.checkPromptSize(model, req.Prompt); err != nil {
		metrics.ModelRequests.WithLabelValues(s.provider.Name(), metrics.OutcomeError).Inc()
		return nil, err
	}

	attemptReq := *req
	attemptReq.Model = model

	var lastErr error
	for attempt := 0; attempt <= s.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := s.backoffDelay(attempt - 1)
			preventive := preventiveDelayCap
			if delay < preventive {
				preventive = delay
			}
			s.sleep(preventive)
			s.sleep(delay + s.jitter())
			metrics.ModelRetries.Inc()
		}

		resp, err := s.provider.Generate(ctx, &attemptReq)
		if err == nil {
			metrics.ModelRequests.WithLabelValues(s.provider.Name(), metrics.OutcomeOK).Inc()
			return resp, nil
		}
		lastErr = err

		if !IsTransient(err) {
			metrics.ModelRequests.WithLabelValues(s.provider.Name(), metrics.OutcomeError).Inc()
			return nil, errkind.Wrap(errkind.ModelUpstreamFatal, err, "%s generation failed", s.provider.Name())
		}

		s.logger.Warn("transient upstream failure, retrying",
			"provider", s.provider.Name(), "model", model,
			"attempt", attempt+1, "max_retries", s.policy.MaxRetries, "error", err)
	}

	metrics.ModelRequests.WithLabelValues(s.provider.Name(), metrics.OutcomeError).Inc()
	return nil, errkind.Wrap(errkind.ModelUpstreamFatal, lastErr,
		"%s generation failed after %d retries", s.provider.Name(), s.policy.MaxRetries)
}

// checkPromptSize enforces the per-model token limit before any upstream
// request is issued.
func (s *Service) checkPromptSize(model, prompt string) error {
	count, ok := s.provider.CountTokens(model, prompt)
	if !ok {
		count = EstimateTokens(prompt)
	}

	limit := TokenLimit(model)
	if count > limit {
		return errkind.New(errkind.PromptTooLarge,
			"Prompt too large: %d tokens exceeds %s limit of %d tokens", count, model, limit)
	}
	if float64(count) > warnThreshold*float64(limit) {
		s.logger.Warn("prompt approaching token limit",
			"model", model, "tokens", count, "limit", limit)
	}
	return nil
}

// backoffDelay computes the exponential delay for the given retry index,
// capped at the policy ceiling. Jitter is added by the caller.
func (s *Service) backoffDelay(retry int) time.Duration {
	delay := float64(s.policy.InitialDelay)
	for i := 0; i < retry; i++ {
		delay *= s.policy.BackoffFactor
		if delay >= float64(s.policy.MaxDelay) {
			return s.policy.MaxDelay
		}
	}
	if delay > float64(s.policy.MaxDelay) {
		return s.policy.MaxDelay
	}
	return time.Duration(delay)
}

// IsTransient reports whether an upstream error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "503") ||
		strings.Contains(msg, "Service Unavailable") ||
		strings.Contains(msg, "overloaded")
}

// StripJSONFence removes a surrounding markdown code fence from a model
// response, returning the inner text. Responses without a fence are returned
// trimmed.
func StripJSONFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		trimmed = trimmed[idx+1:]
	}
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}
