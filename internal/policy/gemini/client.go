// Package gemini classifies policy evidence candidates with Google Gemini.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/joshsymonds/footprint/internal/policy"
)

const (
	DefaultModel      = "gemini-2.0-flash"
	defaultMaxRetries = 3
	defaultRetryDelay = 2 * time.Second
)

// Config for the Gemini classifier.
type Config struct {
	APIKey     string
	ModelName  string
	MaxRetries int
	RetryDelay time.Duration
}

type generator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Classifier implements policy.Classifier over the Gemini API.
type Classifier struct {
	client     *genai.Client
	model      generator
	modelName  string
	maxRetries int
	retryDelay time.Duration
	logger     *slog.Logger
}

// New creates a Gemini-backed classifier. Close releases the connection.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Classifier, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	model := client.GenerativeModel(cfg.ModelName)
	model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(SystemInstruction)}}
	model.ResponseMIMEType = "application/json"
	model.GenerationConfig.Temperature = genai.Ptr[float32](0.2)
	model.GenerationConfig.TopP = genai.Ptr[float32](0.9)
	model.GenerationConfig.MaxOutputTokens = genai.Ptr[int32](2000)

	c := newClassifier(model, cfg, logger)
	c.client = client
	logger.Info("gemini classifier initialized", "model", cfg.ModelName, "max_retries", c.maxRetries)
	return c, nil
}

func newClassifier(model generator, cfg Config, logger *slog.Logger) *Classifier {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
	}
	return &Classifier{
		model:      model,
		modelName:  cfg.ModelName,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

func (c *Classifier) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Classify asks the model to pick flags and evidence ids. Transport errors
// and unreadable answers are retried; the final failure wraps
// policy.ErrClassifierUnavailable.
func (c *Classifier) Classify(ctx context.Context, req policy.Request) (policy.Classification, error) {
	prompt := BuildPrompt(req)
	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			c.logger.WarnContext(ctx, "retrying gemini request", "attempt", attempt+1, "error", lastErr)
			if err := sleep(ctx, c.retryDelay); err != nil {
				return policy.Classification{}, fmt.Errorf("%w: %w", policy.ErrClassifierUnavailable, err)
			}
		}
		resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = fmt.Errorf("gemini api: %w", err)
			continue
		}
		text, err := responseText(resp)
		if err != nil {
			lastErr = err
			continue
		}
		out, err := decodeResponse(text, req)
		if err != nil {
			lastErr = err
			c.logger.DebugContext(ctx, "unreadable gemini response", "response", text)
			continue
		}
		out.Model = c.modelName
		return out, nil
	}
	return policy.Classification{}, fmt.Errorf("%w: failed after %d attempts: %w",
		policy.ErrClassifierUnavailable, c.maxRetries, lastErr)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("empty response from gemini")
	}
	text, ok := resp.Candidates[0].Content.Parts[0].(genai.Text)
	if !ok {
		return "", errors.New("unexpected response part from gemini")
	}
	return string(text), nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ policy.Classifier = (*Classifier)(nil)
