package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const geminiModel = "gemini-2.5-flash"

// GeminiClient uses the Gemini SDK. Sessions are SDK chat sessions.
type GeminiClient struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

func NewGeminiClient(ctx context.Context, cfg Config) (*GeminiClient, error) {
	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.BaseURL))
	}
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	model := geminiModel
	if cfg.Model != "" {
		model = cfg.Model
	}
	return &GeminiClient{client: client, model: model, timeout: cfg.Timeout}, nil
}

func (c *GeminiClient) Close() error {
	return c.client.Close()
}

func (c *GeminiClient) generativeModel(systemPrompt string) *genai.GenerativeModel {
	m := c.client.GenerativeModel(c.model)
	if systemPrompt != "" {
		m.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}
	return m
}

// Chat replays the whole history into a fresh chat session and sends the last user message.
func (c *GeminiClient) Chat(ctx context.Context, messages []Message) (string, error) {
	system, rest := SplitSystem(messages)
	if len(rest) == 0 {
		return "", fmt.Errorf("no messages to send")
	}

	ctx, cancel := withTimeout(ctx, c.timeout)
	defer cancel()

	cs := c.generativeModel(system).StartChat()
	last := rest[len(rest)-1]
	for _, m := range rest[:len(rest)-1] {
		cs.History = append(cs.History, toContent(m))
	}

	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// NewSession starts an SDK chat session. The SDK keeps the history client-side and
// resends it with every message; nothing is stored by the provider.
func (c *GeminiClient) NewSession(ctx context.Context, systemPrompt string) (Session, error) {
	return &geminiSession{
		chat:    c.generativeModel(systemPrompt).StartChat(),
		timeout: c.timeout,
	}, nil
}

type geminiSession struct {
	chat    *genai.ChatSession
	timeout time.Duration
}

func (s *geminiSession) Send(ctx context.Context, text string) (string, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.chat.SendMessage(ctx, genai.Text(text))
	if err != nil {
		return "", err
	}
	return responseText(resp)
}

// Close drops the local history; the SDK keeps nothing server-side.
func (s *geminiSession) Close(ctx context.Context) error {
	s.chat.History = nil
	return nil
}

func toContent(m Message) *genai.Content {
	role := "user"
	if m.Role == RoleAssistant {
		role = "model"
	}
	return &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}}
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("no content returned from Gemini")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			sb.WriteString(string(text))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response type from Gemini")
	}
	return sb.String(), nil
}
