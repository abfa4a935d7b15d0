// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package classify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/pdiddy/mtb-analyzer/pkg/types"
)

const (
	defaultMaxRetries = 2
	defaultRPM        = 50
	classifyMaxTokens = 1024
	deepMaxTokens     = 2048
)

// Completer sends one prompt to a model and returns the reply text.
// Tests supply a fake; production uses the Anthropic Messages API.
type Completer interface {
	Complete(ctx context.Context, model, prompt string, maxTokens int64) (string, error)
}

// AnthropicCompleter calls the Anthropic Messages API.
type AnthropicCompleter struct {
	client anthropic.Client
}

// NewAnthropicCompleter builds a client for apiKey. A non-empty baseURL
// replaces the public endpoint. SDK-level retries are disabled;
// LLMClassifier retries itself.
func NewAnthropicCompleter(apiKey, baseURL string) *AnthropicCompleter {
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicCompleter{client: anthropic.NewClient(opts...)}
}

// Complete implements Completer.
func (c *AnthropicCompleter) Complete(ctx context.Context, model, prompt string, maxTokens int64) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}
	return b.String(), nil
}

// LLMClassifier implements Classifier on top of a Completer. Calls are
// throttled to the configured request rate and retried with exponential
// backoff on transient failures.
type LLMClassifier struct {
	backend    Completer
	limiter    *rate.Limiter
	model      string
	deepModel  string
	maxRetries int
	log        *zap.Logger
	now        func() time.Time
}

// NewLLMClassifier wraps backend with the limits in cfg.
func NewLLMClassifier(backend Completer, cfg types.AnalysisConfig, log *zap.Logger) *LLMClassifier {
	if log == nil {
		log = zap.NewNop()
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	deep := cfg.DeepModel
	if deep == "" {
		deep = model
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = defaultRPM
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = defaultMaxRetries
	}
	return &LLMClassifier{
		backend:    backend,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		model:      model,
		deepModel:  deep,
		maxRetries: retries,
		log:        log,
		now:        time.Now,
	}
}

// Classify implements Classifier.
func (c *LLMClassifier) Classify(ctx context.Context, req Request) (types.AnalysisResult, error) {
	prompt, err := renderRelevancePrompt(req)
	if err != nil {
		return types.AnalysisResult{}, fmt.Errorf("rendering prompt: %w", err)
	}
	model := pick(req.Model, c.model)

	reply, err := c.callWithRetry(ctx, model, prompt, classifyMaxTokens)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	result, err := ParseResponse(reply)
	if err != nil {
		return types.AnalysisResult{}, err
	}
	result.Model = model
	result.AnalyzedAt = c.now().UTC()
	return result, nil
}

// DeepAnalyze implements Classifier.
func (c *LLMClassifier) DeepAnalyze(ctx context.Context, req DeepRequest) (types.DeepAnalysis, error) {
	prompt, err := renderDeepPrompt(req)
	if err != nil {
		return types.DeepAnalysis{}, fmt.Errorf("rendering prompt: %w", err)
	}
	model := pick(req.Model, c.deepModel)

	reply, err := c.callWithRetry(ctx, model, prompt, deepMaxTokens)
	if err != nil {
		return types.DeepAnalysis{}, err
	}
	return types.DeepAnalysis{
		Text:       strings.TrimSpace(reply),
		Model:      model,
		AnalyzedAt: c.now().UTC(),
	}, nil
}

// backoffBase controls the base duration for exponential backoff. Tests
// override this to avoid real sleeps.
var backoffBase = time.Second

func (c *LLMClassifier) callWithRetry(ctx context.Context, model, prompt string, maxTokens int64) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * backoffBase
			c.log.Debug("retrying model call", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(lastErr))
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limiter: %w", err)
		}
		reply, err := c.backend.Complete(ctx, model, prompt, maxTokens)
		if err == nil {
			return reply, nil
		}
		lastErr = err
		if !transient(err) {
			return "", err
		}
	}
	return "", fmt.Errorf("after %d retries: %w", c.maxRetries, lastErr)
}

// transient reports whether err is worth another attempt: rate limiting,
// server errors and network failures are; client errors and cancellation
// are not.
func transient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests || apiErr.StatusCode >= http.StatusInternalServerError
	}
	return true
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
