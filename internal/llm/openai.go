package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
)

const (
	openAIBaseURL = "https://api.openai.com/v1"
	openAIModel   = "gpt-4o-mini"
	groqBaseURL   = "https://api.groq.com/openai/v1"
	groqModel     = "llama-3.3-70b-versatile"
)

// ChatCompletionsClient talks to any OpenAI-compatible /chat/completions endpoint.
type ChatCompletionsClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// OpenAIClient adds provider-managed sessions on top of chat completions,
// chaining stored responses with previous_response_id.
type OpenAIClient struct {
	*ChatCompletionsClient
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	return &OpenAIClient{newChatCompletionsClient(cfg, openAIBaseURL, openAIModel)}
}

// NewGroqClient returns a chat-only client for Groq's OpenAI-compatible API.
func NewGroqClient(cfg Config) *ChatCompletionsClient {
	return newChatCompletionsClient(cfg, groqBaseURL, groqModel)
}

func newChatCompletionsClient(cfg Config, baseURL, model string) *ChatCompletionsClient {
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.Model != "" {
		model = cfg.Model
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ChatCompletionsClient{
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *apiError `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

func (c *ChatCompletionsClient) Chat(ctx context.Context, messages []Message) (string, error) {
	var cr chatResponse
	err := c.do(ctx, http.MethodPost, "/chat/completions", chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: 0.8,
	}, &cr)
	if err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", fmt.Errorf("API error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 {
		return "", fmt.Errorf("no choices returned")
	}
	return cr.Choices[0].Message.Content, nil
}

func (c *ChatCompletionsClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// do sends one JSON request. A nil body sends no payload; a nil out discards the response.
func (c *ChatCompletionsClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

type responsesRequest struct {
	Model              string `json:"model"`
	Instructions       string `json:"instructions,omitempty"`
	Input              string `json:"input"`
	PreviousResponseID string `json:"previous_response_id,omitempty"`
	Store              bool   `json:"store"`
}

type responsesResponse struct {
	ID     string `json:"id"`
	Output []struct {
		Type    string `json:"type"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"output"`
	Error *apiError `json:"error,omitempty"`
}

func (r *responsesResponse) text() string {
	var sb strings.Builder
	for _, item := range r.Output {
		if item.Type != "message" {
			continue
		}
		for _, part := range item.Content {
			if part.Type == "output_text" {
				sb.WriteString(part.Text)
			}
		}
	}
	return sb.String()
}

// NewSession opens a stored-response chain. Instructions are resent on each call
// because they are not inherited through previous_response_id.
func (c *OpenAIClient) NewSession(ctx context.Context, systemPrompt string) (Session, error) {
	return &openAISession{client: c.ChatCompletionsClient, instructions: systemPrompt}, nil
}

type openAISession struct {
	client       *ChatCompletionsClient
	instructions string

	mu     sync.Mutex
	lastID string
	ids    []string
}

func (s *openAISession) Send(ctx context.Context, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rr responsesResponse
	err := s.client.do(ctx, http.MethodPost, "/responses", responsesRequest{
		Model:              s.client.model,
		Instructions:       s.instructions,
		Input:              text,
		PreviousResponseID: s.lastID,
		Store:              true,
	}, &rr)
	if err != nil {
		return "", err
	}
	if rr.Error != nil {
		return "", fmt.Errorf("API error: %s", rr.Error.Message)
	}
	s.lastID = rr.ID
	s.ids = append(s.ids, rr.ID)
	return rr.text(), nil
}

// Close deletes every stored response of the chain. All deletions are attempted.
func (s *openAISession) Close(ctx context.Context) error {
	s.mu.Lock()
	ids := s.ids
	s.ids = nil
	s.lastID = ""
	s.mu.Unlock()

	var firstErr error
	for _, id := range ids {
		if err := s.client.do(ctx, http.MethodDelete, "/responses/"+id, nil, nil); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("delete response %s: %w", id, err)
		}
	}
	return firstErr
}
