package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"nutriplan/internal/config"
)

// openAIClient talks to any OpenAI-compatible chat completions endpoint.
// Transient failures (timeouts, connection errors, throttling) are retried
// with a fixed delay; client-side rejections are not.
type openAIClient struct {
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration

	httpClient *http.Client
	sleep      func(time.Duration)
}

// NewOpenAIClient creates a client for an OpenAI-compatible provider.
func NewOpenAIClient(cfg *config.Config) TextGenerator {
	return &openAIClient{
		apiKey:      cfg.OpenAIAPIKey,
		baseURL:     cfg.OpenAIBaseURL,
		model:       cfg.OpenAIModel,
		temperature: cfg.OpenAITemperature,
		timeout:     cfg.OpenAITimeout,
		maxAttempts: cfg.OpenAIMaxAttempts,
		retryDelay:  cfg.OpenAIRetryDelay,
		httpClient:  &http.Client{},
		sleep:       time.Sleep,
	}
}

// GenerateContent sends a prompt to the chat completions endpoint and
// returns the generated text along with attempt and latency metadata.
func (c *openAIClient) GenerateContent(ctx context.Context, prompt string) (ContentResponse, error) {
	if c.apiKey == "" {
		return ContentResponse{Model: c.model}, ErrNotConfigured
	}

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		content, err := c.complete(ctx, prompt)
		if err == nil {
			return ContentResponse{
				Content:  content,
				Model:    c.model,
				Attempts: attempt,
				Latency:  time.Since(start),
			}, nil
		}
		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) {
			return ContentResponse{
				Model:    c.model,
				Attempts: attempt,
				Latency:  time.Since(start),
			}, err
		}
		if attempt < c.maxAttempts {
			c.sleep(c.retryDelay)
		}
	}

	return ContentResponse{
		Model:    c.model,
		Attempts: c.maxAttempts,
		Latency:  time.Since(start),
	}, fmt.Errorf("%w: %v", ErrRetryExhausted, lastErr)
}

func (c *openAIClient) complete(ctx context.Context, prompt string) (string, error) {
	reqBody := map[string]interface{}{
		"model": c.model,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature":     c.temperature,
		"response_format": map[string]string{"type": "json_object"},
	}

	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewBuffer(jsonBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || attemptCtx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", classifyStatus(resp.StatusCode, bodyBytes)
	}

	var completion struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&completion); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidOutput, err)
	}
	if len(completion.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrInvalidOutput)
	}
	return completion.Choices[0].Message.Content, nil
}

func classifyStatus(status int, body []byte) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status=%d", ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: status=%d", ErrUnavailable, status)
	case status == http.StatusRequestTimeout:
		return fmt.Errorf("%w: status=%d", ErrTimeout, status)
	default:
		return fmt.Errorf("%w: status=%d body=%s", ErrBadRequest, status, body)
	}
}
