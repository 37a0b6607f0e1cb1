package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/generative-ai-go/genai"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	// structuredAttempts bounds regeneration when output fails schema
	// validation. Transport retries happen inside each attempt.
	structuredAttempts = 3

	retryInitialInterval = 1 * time.Second
	retryMaxInterval     = 10 * time.Second
	retryMaxRetries      = 2 // 3 attempts total
)

// errEmptyResponse marks a response with no usable text; retried like a
// transient failure, reported as bad output when attempts run out.
var errEmptyResponse = errors.New("empty response")

// GeminiClient implements Client on the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	logger      *zap.Logger
}

// NewGeminiClient builds a client for the given model and sampling
// temperature.
func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float64, logger *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm API key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: float32(temperature),
		logger:      logger.Named("llm"),
	}, nil
}

// CompleteText returns a free-form completion.
func (c *GeminiClient) CompleteText(ctx context.Context, system, user string, maxTokens int) (string, error) {
	text, err := c.generate(ctx, system, user, maxTokens, false)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// CompleteStructured requests JSON output, validates it against schema,
// and unmarshals into out. Output that fails validation is regenerated;
// persistent mismatch is ErrBadOutput.
func (c *GeminiClient) CompleteStructured(ctx context.Context, system, user, schema string, maxTokens int, out any) error {
	var lastErr error
	for attempt := 1; attempt <= structuredAttempts; attempt++ {
		text, err := c.generate(ctx, system, user, maxTokens, true)
		if err != nil {
			return err
		}

		cleaned := CleanJSONBlock(text)
		if err := ValidateAgainstSchema(schema, cleaned); err != nil {
			lastErr = err
			c.logger.Debug("structured output failed validation",
				zap.Int("attempt", attempt), zap.Error(err))
			continue
		}

		if err := json.Unmarshal([]byte(cleaned), out); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("%w: %v", ErrBadOutput, lastErr)
}

// Close releases the underlying provider connection.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// generate performs one completion with transport-level retries. The
// backoff policy retries network failures, 5xx, and 429; other provider
// rejections are permanent.
func (c *GeminiClient) generate(ctx context.Context, system, user string, maxTokens int, jsonMode bool) (string, error) {
	model := c.client.GenerativeModel(c.model)
	model.SetTemperature(c.temperature)
	model.SetMaxOutputTokens(int32(maxTokens))
	if system != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}

	op := func() (string, error) {
		resp, err := model.GenerateContent(ctx, genai.Text(user))
		if err != nil {
			return "", classify(err)
		}
		text, err := responseText(resp)
		if err != nil {
			return "", err // errEmptyResponse, retryable
		}
		return text, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialInterval
	bo.MaxInterval = retryMaxInterval
	bo.MaxElapsedTime = 0

	text, err := backoff.RetryWithData(op, backoff.WithContext(backoff.WithMaxRetries(bo, retryMaxRetries), ctx))
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if errors.Is(err, ErrUnavailable) {
			return "", err
		}
		if errors.Is(err, errEmptyResponse) {
			return "", fmt.Errorf("%w: %v", ErrBadOutput, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return text, nil
}

// classify maps a provider error to retryable (returned as-is) or
// permanent (wrapped in ErrUnavailable).
func classify(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == 429 || gerr.Code >= 500 {
			return err
		}
		return backoff.Permanent(fmt.Errorf("%w: provider status %d: %v", ErrUnavailable, gerr.Code, err))
	}
	// Network-level failure; worth retrying.
	return err
}

// responseText extracts the concatenated text parts of a response.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errEmptyResponse
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", errEmptyResponse
	}
	return sb.String(), nil
}
