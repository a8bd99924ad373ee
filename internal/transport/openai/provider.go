package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/studybuddy/internal/domain"
	"github.com/kailas-cloud/studybuddy/internal/domain/generation"
	"github.com/kailas-cloud/studybuddy/internal/metrics"
)

// DefaultTimeout applies when Send receives a non-positive timeout.
const DefaultTimeout = 30 * time.Second

// Provider is a chat-completion client for OpenAI-compatible APIs (e.g. Gemini's /v1beta/openai).
type Provider struct {
	client         *openai.Client
	model          string
	inlineSystem   bool
	user           string
	defaultTimeout time.Duration
	logger         *zap.Logger
}

// Config holds the provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// InlineSystem sends persona and prompt as a single user message.
	InlineSystem bool
	User         string
	Timeout      time.Duration
	HTTPClient   *http.Client
	Logger       *zap.Logger
}

// NewProvider creates an OpenAI-compatible generative provider.
func NewProvider(cfg *Config) *Provider {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	if cfg.HTTPClient != nil {
		clientCfg.HTTPClient = cfg.HTTPClient
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Provider{
		client:         openai.NewClientWithConfig(clientCfg),
		model:          cfg.Model,
		inlineSystem:   cfg.InlineSystem,
		user:           cfg.User,
		defaultTimeout: timeout,
		logger:         logger,
	}
}

// Send implements domain.Provider: one chat-completion attempt, failures classified.
func (p *Provider) Send(ctx context.Context, req generation.Request, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	resp, err := p.client.CreateChatCompletion(ctx, p.buildRequest(req))

	duration := time.Since(start)
	metrics.ProviderRequestDuration.WithLabelValues(p.model).Observe(duration.Seconds())

	if err != nil {
		return "", p.fail(classify(ctx, err))
	}

	if len(resp.Choices) == 0 {
		return "", p.fail(domain.NewProviderError(domain.FailureMalformedResponse, http.StatusOK,
			errors.New("response has no choices")))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", p.fail(domain.NewProviderError(domain.FailureMalformedResponse, http.StatusOK,
			fmt.Errorf("empty answer text (finish reason %q)", resp.Choices[0].FinishReason)))
	}

	metrics.ProviderRequestsTotal.WithLabelValues(p.model, "success").Inc()
	if resp.Usage.TotalTokens > 0 {
		metrics.ProviderTokensTotal.WithLabelValues(p.model, "prompt").Add(float64(resp.Usage.PromptTokens))
		metrics.ProviderTokensTotal.WithLabelValues(p.model, "completion").Add(float64(resp.Usage.CompletionTokens))
	}

	p.logger.Debug("Provider call completed",
		zap.String("model", p.model),
		zap.String("category", string(req.Category)),
		zap.Duration("duration", duration),
		zap.Int("prompt_tokens", resp.Usage.PromptTokens),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)

	return text, nil
}

// HealthCheck verifies API availability via ListModels (free endpoint).
func (p *Provider) HealthCheck(ctx context.Context) error {
	if _, err := p.client.ListModels(ctx); err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	return nil
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.model }

// buildRequest maps the domain request onto the wire format.
// top_k has no field in the OpenAI schema and is not sent.
func (p *Provider) buildRequest(req generation.Request) openai.ChatCompletionRequest {
	var messages []openai.ChatCompletionMessage
	if p.inlineSystem || req.System == "" {
		messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: req.Text()},
		}
	} else {
		messages = []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		}
	}

	return openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    messages,
		MaxTokens:   req.Params.MaxOutputTokens,
		Temperature: req.Params.Temperature,
		TopP:        req.Params.TopP,
		User:        p.user,
	}
}

func (p *Provider) fail(err error) error {
	kind, _ := domain.FailureKindOf(err)
	metrics.ProviderRequestsTotal.WithLabelValues(p.model, "error").Inc()
	metrics.ProviderErrorsTotal.WithLabelValues(p.model, string(kind)).Inc()
	p.logger.Warn("Provider call failed",
		zap.String("model", p.model),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	return err
}

// classify maps a go-openai error onto a failure kind.
func classify(ctx context.Context, err error) error {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.NewProviderError(domain.FailureTimeout, 0, err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return domain.NewProviderError(rejectionKind(apiErr.HTTPStatusCode), apiErr.HTTPStatusCode, apiErr)
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		if msg, ok := extractErrorPayload(reqErr.Body); ok {
			return domain.NewProviderError(rejectionKind(reqErr.HTTPStatusCode), reqErr.HTTPStatusCode, errors.New(msg))
		}
		return domain.NewProviderError(domain.FailureTransport, reqErr.HTTPStatusCode,
			fmt.Errorf("unexpected status %s", reqErr.HTTPStatus))
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
		return domain.NewProviderError(domain.FailureMalformedResponse, http.StatusOK, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewProviderError(domain.FailureTimeout, 0, err)
	}

	return domain.NewProviderError(domain.FailureTransport, 0, err)
}

// rejectionKind classifies a response carrying an error payload.
// Rate limiting and server-side failures (Gemini's "overloaded") are transient.
func rejectionKind(status int) domain.FailureKind {
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return domain.FailureTransport
	}
	return domain.FailureUpstreamRejected
}

// extractErrorPayload finds a provider error message in a body the client could not decode.
// Gemini wraps errors in a one-element array: [{"error": {...}}].
func extractErrorPayload(body []byte) (string, bool) {
	type payload struct {
		Error *struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}

	var single payload
	if json.Unmarshal(body, &single) == nil && single.Error != nil {
		return firstNonEmpty(single.Error.Message, single.Error.Status, "provider error"), true
	}
	var list []payload
	if json.Unmarshal(body, &list) == nil && len(list) > 0 && list[0].Error != nil {
		return firstNonEmpty(list[0].Error.Message, list[0].Error.Status, "provider error"), true
	}
	return "", false
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
