package server

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
)

const clientBufferSize = 64

// Hub stream event names that are not engine event kinds.
const (
	EventLog     = "log"
	EventWarn    = "warn"
	EventPrompt  = "prompt"
	EventAgent   = "agent"
	EventPlayers = "players"
	EventSecret  = "secret"
	EventStatus  = "status"
)

// Message is one item of a game's event stream.
type Message struct {
	ID    int             `json:"id"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub fans a game's events out to stream clients. Every message is kept so late
// subscribers can replay the game so far.
type Hub struct {
	logger  *zap.Logger
	prompts bool

	mu      sync.RWMutex
	clients map[chan Message]struct{}
	backlog []Message
	closed  bool
}

// NewHub creates a hub. Prompt and agent events carry secrets and are only
// streamed when exposePrompts is set.
func NewHub(logger *zap.Logger, exposePrompts bool) *Hub {
	return &Hub{
		logger:  logger,
		prompts: exposePrompts,
		clients: make(map[chan Message]struct{}),
	}
}

// Subscribe returns the backlog and a channel of later messages. The channel is
// closed when the game's stream ends.
func (h *Hub) Subscribe() ([]Message, <-chan Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	backlog := append([]Message(nil), h.backlog...)
	ch := make(chan Message, clientBufferSize)
	if h.closed {
		close(ch)
		return backlog, ch, func() {}
	}
	h.clients[ch] = struct{}{}

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}
		})
	}
	return backlog, ch, unsubscribe
}

// Publish appends a message to the backlog and sends it to every client.
// A client whose buffer is full misses the message; Publish never waits on it.
func (h *Hub) Publish(event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		h.logger.Warn("encoding stream event", zap.String("event", event), zap.Error(err))
		return
	}

	// Appending and sending under one lock keeps a concurrent Subscribe from
	// seeing the message both in its backlog and on its channel.
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	msg := Message{ID: len(h.backlog) + 1, Event: event, Data: raw}
	h.backlog = append(h.backlog, msg)
	for client := range h.clients {
		select {
		case client <- msg:
		default:
			h.logger.Debug("stream client too slow, dropping message", zap.Int("id", msg.ID))
		}
	}
}

// Close ends every stream. Later publishes are dropped.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for client := range h.clients {
		close(client)
		delete(h.clients, client)
	}
}

func (h *Hub) Backlog() []Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]Message(nil), h.backlog...)
}

type lineData struct {
	Line string `json:"line"`
}

type publicPlayer struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	IsHuman bool   `json:"is_human"`
}

type secretData struct {
	Player string        `json:"player"`
	Secret models.Secret `json:"secret"`
}

func (h *Hub) Log(line string) { h.Publish(EventLog, lineData{Line: line}) }
func (h *Hub) Warn(msg string) { h.Publish(EventWarn, lineData{Line: msg}) }

func (h *Hub) Prompt(e events.PromptEvent) {
	if h.prompts {
		h.Publish(EventPrompt, e)
	}
}

func (h *Hub) AgentCreated(a events.AgentInfo) {
	if h.prompts {
		h.Publish(EventAgent, a)
	}
}

// GameInfo publishes the roster without secrets, plus the human's own secret.
func (h *Hub) GameInfo(info events.GameInfo) {
	roster := make([]publicPlayer, 0, len(info.Players))
	for _, p := range info.Players {
		roster = append(roster, publicPlayer{ID: p.ID, Name: p.Name, IsHuman: p.IsHuman})
	}
	h.Publish(EventPlayers, roster)
	for _, p := range info.Players {
		if p.IsHuman {
			h.Publish(EventSecret, secretData{Player: p.Name, Secret: p.Secret})
		}
	}
}

func (h *Hub) Event(e events.Event) {
	h.Publish(string(e.Kind), e.Data)
}
