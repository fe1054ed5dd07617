// Package llamacpp talks to the OpenAI-compatible chat endpoint of a
// llama.cpp server.
package llamacpp

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
)

const chatEndpoint = "/v1/chat/completions"

// Config holds the request parameters
type Config struct {
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
	// JSONMode asks the server to constrain the reply to a JSON object
	JSONMode bool
}

// DefaultConfig returns settings for short JSON verdicts
func DefaultConfig() Config {
	return Config{
		Timeout:   300 * time.Second,
		MaxTokens: 256,
		JSONMode:  true,
	}
}

// Client queries a llama.cpp server
type Client struct {
	baseURL    string
	httpClient *http.Client
	config     Config
}

// NewClient creates a client with the default configuration
func NewClient(serverURL string) (*Client, error) {
	return NewClientWithConfig(serverURL, DefaultConfig())
}

// NewClientWithConfig creates a client with custom request parameters
func NewClientWithConfig(serverURL string, config Config) (*Client, error) {
	if serverURL == "" {
		serverURL = "http://localhost:8080"
	}
	if !strings.HasPrefix(serverURL, "http://") && !strings.HasPrefix(serverURL, "https://") {
		return nil, fmt.Errorf("invalid URL %q: http or https scheme required", serverURL)
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultConfig().Timeout
	}
	return &Client{
		baseURL:    strings.TrimSuffix(serverURL, "/"),
		httpClient: &http.Client{Timeout: config.Timeout},
		config:     config,
	}, nil
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// statusError is a non-200 reply from the server
type statusError struct {
	code    int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("server returned status %d: %s", e.code, e.message)
}

// Query sends a prompt with one PNG image and returns the model's text
// reply. In JSON mode a server that rejects response_format is asked again
// without it.
func (c *Client) Query(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		defer cancel()
	}

	req, err := c.buildRequest(model, prompt, imgB64)
	if err != nil {
		return "", err
	}

	reply, err := c.complete(ctx, req)
	var serr *statusError
	if err != nil && req.ResponseFormat != nil && errors.As(err, &serr) &&
		serr.code == http.StatusBadRequest && strings.Contains(serr.message, "response_format") {
		req.ResponseFormat = nil
		reply, err = c.complete(ctx, req)
	}
	if err != nil {
		return "", fmt.Errorf("llama.cpp query: %w", err)
	}
	return reply, nil
}

func (c *Client) buildRequest(model, prompt, imgB64 string) (*chatRequest, error) {
	parts := []contentPart{{Type: "text", Text: prompt}}
	if imgB64 != "" {
		parts = append(parts, contentPart{
			Type:     "image_url",
			ImageURL: &imageURL{URL: "data:image/png;base64," + imgB64},
		})
	}
	content, err := json.Marshal(parts)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal content: %w", err)
	}

	req := &chatRequest{
		Model:       model,
		Messages:    []message{{Role: "user", Content: content}},
		Temperature: c.config.Temperature,
		MaxTokens:   c.config.MaxTokens,
	}
	if c.config.JSONMode {
		req.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	return req, nil
}

func (c *Client) complete(ctx context.Context, req *chatRequest) (string, error) {
	body, err := c.post(ctx, chatEndpoint, req)
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in response")
	}
	text := messageText(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty response from llama.cpp server")
	}
	return text, nil
}

// messageText reads content sent either as a string or as content parts
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		var b strings.Builder
		for _, p := range parts {
			if p.Type == "text" || p.Type == "" {
				b.WriteString(p.Text)
			}
		}
		return strings.TrimSpace(b.String())
	}
	return ""
}

func (c *Client) post(ctx context.Context, endpoint string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := strings.TrimSpace(string(body))
		var e errorResponse
		if json.Unmarshal(body, &e) == nil && e.Error.Message != "" {
			msg = e.Error.Message
		}
		return nil, &statusError{code: resp.StatusCode, message: msg}
	}
	return body, nil
}
