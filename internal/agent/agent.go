// Package agent wraps one AI player's conversation with its model provider.
package agent

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/models"
)

type Options struct {
	Name         string
	Provider     llm.Provider
	Mode         models.Mode
	SystemPrompt string
	Client       llm.Client
	Sink         events.Sink
	Logger       *zap.Logger
}

// Agent holds either a client-side transcript (memory mode) or a provider session
// (stateful mode). The mode is fixed after Init.
type Agent struct {
	name     string
	provider llm.Provider
	system   string
	client   llm.Client
	sink     events.Sink
	logger   *zap.Logger

	mu      sync.Mutex
	mode    models.Mode
	history []llm.Message
	session llm.Session
}

// New builds an agent and announces it to the sink. Asking for stateful mode on a
// provider without sessions downgrades to memory mode with a warning.
func New(opts Options) *Agent {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Agent{
		name:     opts.Name,
		provider: opts.Provider,
		system:   opts.SystemPrompt,
		client:   opts.Client,
		sink:     events.OrNop(opts.Sink),
		logger:   logger.Named("agent").With(zap.String("player", opts.Name)),
		mode:     opts.Mode,
	}
	if a.mode == "" {
		a.mode = models.ModeMemory
	}
	if a.mode == models.ModeStateful {
		if _, ok := a.client.(llm.StatefulClient); !ok {
			a.downgrade(fmt.Sprintf("%s: provider %s has no stateful sessions, using memory mode", a.name, a.provider))
		}
	}
	if a.mode == models.ModeMemory {
		a.history = []llm.Message{{Role: llm.RoleSystem, Content: a.system}}
	}

	a.sink.AgentCreated(events.AgentInfo{
		Name:         a.name,
		Provider:     string(a.provider),
		Mode:         string(a.mode),
		SystemPrompt: a.system,
	})
	return a
}

func (a *Agent) downgrade(warning string) {
	a.logger.Warn("downgrading to memory mode", zap.String("reason", warning))
	a.sink.Warn(warning)
	a.mode = models.ModeMemory
	a.history = []llm.Message{{Role: llm.RoleSystem, Content: a.system}}
}

func (a *Agent) Name() string { return a.name }

func (a *Agent) Mode() models.Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.mode
}

// Init opens the provider session in stateful mode. A failure falls back to memory mode.
func (a *Agent) Init(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.openSession(ctx)
}

// openSession must be called with a.mu held.
func (a *Agent) openSession(ctx context.Context) error {
	if a.mode != models.ModeStateful || a.session != nil {
		return nil
	}
	sc := a.client.(llm.StatefulClient)
	session, err := sc.NewSession(ctx, a.system)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		a.downgrade(fmt.Sprintf("%s: could not open session (%v), using memory mode", a.name, err))
		return nil
	}
	a.session = session
	return nil
}

// Say sends text and returns the reply. Provider failures come back as "[error: ...]"
// so that one agent's trouble never stops the game.
func (a *Agent) Say(ctx context.Context, text string) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	// No-op unless Init was skipped.
	if err := a.openSession(ctx); err != nil {
		a.logger.Warn("opening session", zap.Error(err))
		return fmt.Sprintf("[error: %v]", err)
	}

	id := uuid.NewString()
	var (
		reply string
		err   error
	)

	if a.mode == models.ModeStateful {
		a.emitSent(id, []llm.Message{{Role: llm.RoleUser, Content: text}})
		reply, err = a.session.Send(ctx, text)
	} else {
		a.history = append(a.history, llm.Message{Role: llm.RoleUser, Content: text})
		a.emitSent(id, a.history)
		reply, err = a.client.Chat(ctx, a.history)
		if err != nil {
			// keep user/assistant alternation for the next call
			a.history = a.history[:len(a.history)-1]
		} else {
			a.history = append(a.history, llm.Message{Role: llm.RoleAssistant, Content: reply})
		}
	}

	if err != nil {
		a.logger.Warn("provider call failed", zap.Error(err))
		reply = fmt.Sprintf("[error: %v]", err)
	}
	a.emitReceived(id, reply, err)
	return reply
}

// History returns a copy of the memory-mode transcript.
func (a *Agent) History() []llm.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]llm.Message(nil), a.history...)
}

// Close releases the provider session and the client. Both are attempted.
func (a *Agent) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var err error
	if a.session != nil {
		err = multierr.Append(err, a.session.Close(ctx))
		a.session = nil
	}
	if a.client != nil {
		err = multierr.Append(err, a.client.Close())
	}
	return err
}

func (a *Agent) emitSent(id string, msgs []llm.Message) {
	out := make([]events.Message, len(msgs))
	for i, m := range msgs {
		out[i] = events.Message{Role: m.Role, Content: m.Content}
	}
	a.sink.Prompt(events.PromptEvent{
		ID:        id,
		Direction: events.Sent,
		Player:    a.name,
		Provider:  string(a.provider),
		Mode:      string(a.mode),
		Messages:  out,
		At:        time.Now(),
	})
}

func (a *Agent) emitReceived(id, reply string, err error) {
	e := events.PromptEvent{
		ID:        id,
		Direction: events.Received,
		Player:    a.name,
		Provider:  string(a.provider),
		Mode:      string(a.mode),
		Response:  reply,
		At:        time.Now(),
	}
	if err != nil {
		e.Error = err.Error()
	}
	a.sink.Prompt(e)
}
