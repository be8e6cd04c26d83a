// Package llm wraps the model providers behind two small capabilities:
// stateless chat over a caller-managed history, and provider-managed sessions.
package llm

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Provider names a model backend.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderGemini    Provider = "gemini"
	ProviderGroq      Provider = "groq"
)

// Providers lists every supported backend.
var Providers = []Provider{ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderGroq}

// Label is the display prefix for players backed by p.
func (p Provider) Label() string {
	switch p {
	case ProviderOpenAI:
		return "GPT"
	case ProviderAnthropic:
		return "Claude"
	case ProviderGemini:
		return "Gemini"
	case ProviderGroq:
		return "Llama"
	default:
		return strings.ToUpper(string(p))
	}
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client sends a full conversation and returns the reply text.
type Client interface {
	Chat(ctx context.Context, messages []Message) (string, error)
	Close() error
}

// Session is a conversation whose history the provider keeps.
type Session interface {
	Send(ctx context.Context, text string) (string, error)
	Close(ctx context.Context) error
}

// StatefulClient is a Client that can also open provider-managed sessions.
type StatefulClient interface {
	Client
	NewSession(ctx context.Context, systemPrompt string) (Session, error)
}

// Config selects and configures one provider client.
type Config struct {
	Provider Provider
	APIKey   string
	Model    string
	BaseURL  string
	Timeout  time.Duration
}

const DefaultTimeout = 2 * time.Minute

// New builds the client for cfg.Provider.
func New(ctx context.Context, cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("no API key configured for provider %s", cfg.Provider)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIClient(cfg), nil
	case ProviderGroq:
		return NewGroqClient(cfg), nil
	case ProviderAnthropic:
		return NewAnthropicClient(cfg), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown provider: %s", cfg.Provider)
	}
}

// SplitSystem separates system messages from the conversation.
func SplitSystem(messages []Message) (string, []Message) {
	var system []string
	rest := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			system = append(system, m.Content)
			continue
		}
		rest = append(rest, m)
	}
	return strings.Join(system, "\n\n"), rest
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok || d <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
