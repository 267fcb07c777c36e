package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nlquery/internal/domain"
	"github.com/kailas-cloud/nlquery/internal/metrics"
)

// Generator is a generative provider using the OpenAI-compatible chat API (OpenAI, Ollama /v1, vLLM).
type Generator struct {
	client      *openai.Client
	temperature float32
	maxTokens   int
	user        string
	logger      *zap.Logger
}

// Config holds the generative provider settings.
type Config struct {
	APIKey      string
	BaseURL     string
	Temperature float32
	MaxTokens   int
	User        string
	HTTPClient  *http.Client
	Logger      *zap.Logger
}

// NewGenerator creates an OpenAI-compatible chat completion provider.
func NewGenerator(cfg *Config) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	clientCfg.BaseURL = cfg.BaseURL
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	return &Generator{
		client:      openai.NewClientWithConfig(clientCfg),
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		user:        cfg.User,
		logger:      cfg.Logger,
	}
}

// Generate implements domain.Generator. Returns the first choice and usage with transport-level metrics.
func (g *Generator) Generate(ctx context.Context, model string, prompt domain.Prompt) (domain.Generation, error) {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if prompt.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: prompt.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt.User,
	})

	req := openai.ChatCompletionRequest{
		Model:       model,
		Messages:    messages,
		Temperature: g.temperature,
		User:        g.user,
	}
	if g.maxTokens > 0 {
		req.MaxTokens = g.maxTokens
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)

	duration := time.Since(start)

	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(model, "error").Inc()
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			metrics.GenerationErrorsTotal.WithLabelValues(model, "timeout").Inc()
			return domain.Generation{}, fmt.Errorf("chat completion after %s: %w", duration.Round(time.Millisecond), domain.ErrTimeout)
		}
		metrics.GenerationErrorsTotal.WithLabelValues(model, "api_error").Inc()
		return domain.Generation{}, parseAPIError(err)
	}

	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(model, "error").Inc()
		metrics.GenerationErrorsTotal.WithLabelValues(model, "empty_response").Inc()
		return domain.Generation{}, fmt.Errorf("empty chat completion response: %w", domain.ErrModelUnavailable)
	}

	// Record success metrics
	metrics.GenerationRequestsTotal.WithLabelValues(model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(model).Observe(duration.Seconds())

	promptTokens := resp.Usage.PromptTokens
	completionTokens := resp.Usage.CompletionTokens
	if promptTokens+completionTokens > 0 {
		metrics.GenerationTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
		metrics.GenerationTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}

	return domain.Generation{
		Text:             resp.Choices[0].Message.Content,
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
	}, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (g *Generator) HealthCheck(ctx context.Context) error {
	if _, err := g.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// parseAPIError extracts a human-readable error from the API response.
// All errors are wrapped with domain.ErrModelUnavailable for correct 502 mapping.
func parseAPIError(err error) error {
	wrap := domain.ErrModelUnavailable

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail != "" {
			return fmt.Errorf("generation API error %d: %s: %w",
				reqErr.HTTPStatusCode, detail, wrap)
		}
		return fmt.Errorf("generation API error %d: %s: %w",
			reqErr.HTTPStatusCode, string(reqErr.Body), wrap)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("generation API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, wrap)
	}

	return fmt.Errorf("generation request failed: %v: %w", err, wrap)
}

// extractDetail extracts the "detail" or "error" field from a JSON error body (vLLM / Ollama formats).
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Detail != "" {
		return parsed.Detail
	}
	return parsed.Error
}
