package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/yungbote/vectorbridge-backend/internal/platform/httpx"
	"github.com/yungbote/vectorbridge-backend/internal/platform/logger"
)

const (
	defaultBaseURL   = "https://api.openai.com/v1"
	defaultModel     = "text-embedding-3-small"
	defaultDim       = 1536
	defaultTimeout   = 30 * time.Second
	defaultRetries   = 3
	maxInputsPerCall = 2048
)

// Client produces embedding vectors for batches of text.
type Client interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
	Model() string
	Dimensions() int
}

type client struct {
	log        *logger.Logger
	httpClient *http.Client
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxRetries int
}

type openAIHTTPError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *openAIHTTPError) Error() string {
	return fmt.Sprintf("openai http status=%d body=%q", e.StatusCode, e.Body)
}

func (e *openAIHTTPError) HTTPStatusCode() int { return e.StatusCode }

func NewClient(log *logger.Logger) (Client, error) {
	apiKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}

	baseURL := strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	model := strings.TrimSpace(os.Getenv("OPENAI_EMBED_MODEL"))
	if model == "" {
		model = defaultModel
	}

	dim := defaultDim
	if raw := strings.TrimSpace(os.Getenv("OPENAI_EMBED_DIMENSIONS")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("invalid OPENAI_EMBED_DIMENSIONS=%q", raw)
		}
		dim = parsed
	}

	timeout := defaultTimeout
	if raw := strings.TrimSpace(os.Getenv("OPENAI_TIMEOUT_SECONDS")); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("invalid OPENAI_TIMEOUT_SECONDS=%q", raw)
		}
		timeout = time.Duration(secs) * time.Second
	}

	retries := defaultRetries
	if raw := strings.TrimSpace(os.Getenv("OPENAI_MAX_RETRIES")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("invalid OPENAI_MAX_RETRIES=%q", raw)
		}
		retries = parsed
	}

	return &client{
		log:        log.With("service", "OpenAIClient"),
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		dimensions: dim,
		maxRetries: retries,
	}, nil
}

func (c *client) Model() string { return c.model }

func (c *client) Dimensions() int { return c.dimensions }

func (c *client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	if len(inputs) > maxInputsPerCall {
		return nil, fmt.Errorf("embed batch too large: %d inputs (max %d)", len(inputs), maxInputsPerCall)
	}
	for i, input := range inputs {
		if strings.TrimSpace(input) == "" {
			return nil, fmt.Errorf("embed input %d is blank", i)
		}
	}

	var lastErr error
	backoff := 500 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := backoff
			var httpErr *openAIHTTPError
			if errors.As(lastErr, &httpErr) && httpErr.RetryAfter > 0 {
				wait = httpErr.RetryAfter
			}
			c.log.Warn("retrying openai embeddings call",
				"attempt", attempt, "wait", wait.String(), "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(httpx.JitterSleep(wait)):
			}
			backoff *= 2
		}

		vectors, err := c.embedOnce(ctx, inputs)
		if err == nil {
			return vectors, nil
		}
		lastErr = err
		if !httpx.IsRetryableError(err) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("openai embeddings failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *client) embedOnce(ctx context.Context, inputs []string) ([][]float32, error) {
	reqBody := map[string]any{
		"model": c.model,
		"input": inputs,
	}
	if c.model != defaultModel || c.dimensions != defaultDim {
		reqBody["dimensions"] = c.dimensions
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(reqBody); err != nil {
		return nil, fmt.Errorf("encode embeddings request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", &buf)
	if err != nil {
		return nil, fmt.Errorf("build embeddings request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read embeddings response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > 512 {
			body = body[:512] + "..."
		}
		return nil, &openAIHTTPError{
			StatusCode: resp.StatusCode,
			Body:       body,
			RetryAfter: httpx.RetryAfterDuration(resp, 0, 30*time.Second),
		}
	}

	var parsed struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
		Usage struct {
			PromptTokens int `json:"prompt_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("decode embeddings response: %w", err)
	}
	if len(parsed.Data) != len(inputs) {
		return nil, fmt.Errorf("embeddings response has %d vectors for %d inputs", len(parsed.Data), len(inputs))
	}

	// Responses are index-keyed, never assume they arrive in order.
	out := make([][]float32, len(inputs))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(inputs) {
			return nil, fmt.Errorf("embeddings response index %d out of range", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embeddings response index %d has empty vector", item.Index)
		}
		out[item.Index] = item.Embedding
	}
	for i, vec := range out {
		if vec == nil {
			return nil, fmt.Errorf("embeddings response missing vector for input %d", i)
		}
	}

	c.log.Debug("embedded batch",
		"inputs", len(inputs), "model", c.model, "tokens", parsed.Usage.TotalTokens)
	return out, nil
}
