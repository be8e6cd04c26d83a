// Package events defines the observer interface the engine reports to.
// Every method is fire-and-forget: a sink must not block the game for long and must
// not change its course.
package events

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/models"
)

// Direction of a prompt inspection event.
type Direction string

const (
	Sent     Direction = "sent"
	Received Direction = "received"
)

// Message is one chat message as seen by the inspector.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// PromptEvent is half of a sent/received pair sharing the same ID.
type PromptEvent struct {
	ID        string    `json:"id"`
	Direction Direction `json:"direction"`
	Player    string    `json:"player"`
	Provider  string    `json:"provider"`
	Mode      string    `json:"mode"`
	Messages  []Message `json:"messages,omitempty"`
	Response  string    `json:"response,omitempty"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// GameInfo is the one-time snapshot published after setup. It contains secrets.
type GameInfo struct {
	GameID   string            `json:"game_id"`
	Location string            `json:"location"`
	SpyID    string            `json:"spy_id"`
	SpyName  string            `json:"spy_name"`
	Players  []models.Player   `json:"players"`
	Config   models.GameConfig `json:"config"`
}

// AgentInfo is published once per AI agent construction.
type AgentInfo struct {
	Name         string `json:"name"`
	Provider     string `json:"provider"`
	Mode         string `json:"mode"`
	SystemPrompt string `json:"system_prompt"`
}

// Kind names a structured game event.
type Kind string

const (
	KindTurn            Kind = "turn"
	KindReaction        Kind = "reaction"
	KindActionsUnlocked Kind = "actions_unlocked"
	KindAccusation      Kind = "accusation"
	KindAccusationVote  Kind = "accusation_vote"
	KindVote            Kind = "vote"
	KindVerdict         Kind = "verdict"
	KindGuess           Kind = "guess"
	KindGameOver        Kind = "game_over"
	KindInputRequest    Kind = "input_request"
)

// Payloads carried by Event.Data. Turn, vote, accusation and game-over events carry
// models.Turn, models.Vote, models.Accusation and models.GameResult.

type ReactionData struct {
	Player string `json:"player"`
	Text   string `json:"text"`
}

type AccusationVoteData struct {
	Voter   string `json:"voter"`
	Accused string `json:"accused"`
	Yes     bool   `json:"yes"`
}

type VerdictData struct {
	Tally   models.Tally `json:"tally"`
	SpyName string       `json:"spy_name"`
}

type GuessData struct {
	Player  string `json:"player"`
	Guess   string `json:"guess"`
	Reason  string `json:"reason,omitempty"`
	Final   bool   `json:"final"`
	Correct bool   `json:"correct"`
}

type InputRequestData struct {
	Player string `json:"player"`
	Prompt string `json:"prompt"`
}

// Event is a structured game event for UIs. Data holds a kind-specific payload.
type Event struct {
	Kind Kind      `json:"kind"`
	Data any       `json:"data,omitempty"`
	At   time.Time `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(kind Kind, data any) Event {
	return Event{Kind: kind, Data: data, At: time.Now()}
}

// Sink receives everything the engine reports.
type Sink interface {
	Log(line string)
	Warn(msg string)
	Prompt(PromptEvent)
	GameInfo(GameInfo)
	AgentCreated(AgentInfo)
	Event(Event)
}

// Nop discards everything.
type Nop struct{}

func (Nop) Log(string)             {}
func (Nop) Warn(string)            {}
func (Nop) Prompt(PromptEvent)     {}
func (Nop) GameInfo(GameInfo)      {}
func (Nop) AgentCreated(AgentInfo) {}
func (Nop) Event(Event)            {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Multi forwards to every sink in order.
type Multi []Sink

func (m Multi) Log(line string) {
	for _, s := range m {
		s.Log(line)
	}
}

func (m Multi) Warn(msg string) {
	for _, s := range m {
		s.Warn(msg)
	}
}

func (m Multi) Prompt(e PromptEvent) {
	for _, s := range m {
		s.Prompt(e)
	}
}

func (m Multi) GameInfo(g GameInfo) {
	for _, s := range m {
		s.GameInfo(g)
	}
}

func (m Multi) AgentCreated(a AgentInfo) {
	for _, s := range m {
		s.AgentCreated(a)
	}
}

func (m Multi) Event(e Event) {
	for _, s := range m {
		s.Event(e)
	}
}

// LogSink mirrors narration into a zap logger.
type LogSink struct {
	Logger *zap.Logger
}

func NewLogSink(logger *zap.Logger) LogSink {
	return LogSink{Logger: logger.Named("narration")}
}

func (l LogSink) Log(line string) { l.Logger.Debug(line) }
func (l LogSink) Warn(msg string) { l.Logger.Warn(msg) }

func (l LogSink) Prompt(e PromptEvent) {
	l.Logger.Debug("prompt",
		zap.String("id", e.ID),
		zap.String("direction", string(e.Direction)),
		zap.String("player", e.Player),
		zap.Int("messages", len(e.Messages)),
		zap.Int("response_len", len(e.Response)),
		zap.String("error", e.Error))
}

func (l LogSink) GameInfo(g GameInfo) {
	l.Logger.Debug("game info", zap.String("game", g.GameID), zap.String("location", g.Location), zap.String("spy", g.SpyName))
}

func (l LogSink) AgentCreated(a AgentInfo) {
	l.Logger.Debug("agent created", zap.String("name", a.Name), zap.String("provider", a.Provider), zap.String("mode", a.Mode))
}

func (l LogSink) Event(e Event) {
	l.Logger.Debug("event", zap.String("kind", string(e.Kind)))
}

// Recorder keeps everything in memory. Used by tests and the simulator.
type Recorder struct {
	mu      sync.Mutex
	Lines   []string
	Warns   []string
	Prompts []PromptEvent
	Infos   []GameInfo
	Agents  []AgentInfo
	Events  []Event
}

func (r *Recorder) Log(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, line)
}

func (r *Recorder) Warn(msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Warns = append(r.Warns, msg)
}

func (r *Recorder) Prompt(e PromptEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Prompts = append(r.Prompts, e)
}

func (r *Recorder) GameInfo(g GameInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Infos = append(r.Infos, g)
}

func (r *Recorder) AgentCreated(a AgentInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Agents = append(r.Agents, a)
}

func (r *Recorder) Event(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Events = append(r.Events, e)
}

// EventsOf returns recorded events of one kind.
func (r *Recorder) EventsOf(kind Kind) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, e := range r.Events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
