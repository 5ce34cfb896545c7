// Package yandexgpt is a focused client for the YandexGPT completion API.
package yandexgpt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"monitorbot/internal/domain"
)

const (
	defaultBaseURL = "https://llm.api.cloud.yandex.net"
	completionPath = "/foundationModels/v1/completion"

	defaultModel       = "yandexgpt-lite"
	defaultTemperature = 0.5
	defaultMaxTokens   = 1000
)

// completionRequest is the minimal request shape for the completion endpoint.
type completionRequest struct {
	ModelURI          string               `json:"modelUri"`
	CompletionOptions completionOptions    `json:"completionOptions"`
	Messages          []domain.ChatMessage `json:"messages"`
}

type completionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// completionResponse is the minimal response shape returned by the endpoint.
type completionResponse struct {
	Result struct {
		Alternatives []struct {
			Message domain.ChatMessage `json:"message"`
		} `json:"alternatives"`
	} `json:"result"`
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("yandexgpt: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the YandexGPT foundation-models completion endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	apiKey     string
	folderID   string
	model      string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		c.model = model
	}
}

func NewClient(apiKey, folderID string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("yandexgpt: api key must not be empty")
	}
	if strings.TrimSpace(folderID) == "" {
		return nil, errors.New("yandexgpt: folder id must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiKey:     apiKey,
		folderID:   folderID,
		model:      defaultModel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func completionURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + completionPath
}

// Complete sends the system prompt and the user question as the sole turns of
// a completion request and returns the first alternative's text.
func (c *Client) Complete(ctx context.Context, systemPrompt, question string) (string, error) {
	body, err := json.Marshal(completionRequest{
		ModelURI: fmt.Sprintf("gpt://%s/%s", c.folderID, c.model),
		CompletionOptions: completionOptions{
			Stream:      false,
			Temperature: defaultTemperature,
			MaxTokens:   defaultMaxTokens,
		},
		Messages: []domain.ChatMessage{
			{Role: "system", Text: systemPrompt},
			{Role: "user", Text: question},
		},
	})
	if err != nil {
		return "", fmt.Errorf("yandexgpt: marshal request: %w", err)
	}

	url := completionURL(c.baseURL)

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("yandexgpt: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+c.apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", fmt.Errorf("yandexgpt: request failed: %w", err)
	}

	var payload completionResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("yandexgpt: decode response: %w", decErr)
	}
	if len(payload.Result.Alternatives) == 0 {
		return "", errors.New("yandexgpt: no alternatives in response")
	}
	return payload.Result.Alternatives[0].Message.Text, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, doErr
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return buf, nil
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 10 * time.Second}
}
