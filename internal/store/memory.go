// Package store keeps the games started through the web server in memory.
package store

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
)

var ErrGameNotFound = errors.New("game not found")

type Status string

const (
	StatusRunning   Status = "running"
	StatusFinished  Status = "finished"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Game is one web game. It follows the engine's events to keep a public snapshot.
type Game struct {
	ID        string
	Config    models.GameConfig
	CreatedAt time.Time

	cancel func()

	mu         sync.RWMutex
	status     Status
	info       *events.GameInfo
	transcript []models.Turn
	lines      []string
	result     *models.GameResult
	err        string
}

func NewGame(id string, cfg models.GameConfig, cancel func()) *Game {
	return &Game{ID: id, Config: cfg, CreatedAt: time.Now(), cancel: cancel, status: StatusRunning}
}

// Cancel stops the game if it is still running.
func (g *Game) Cancel() {
	if g.cancel != nil {
		g.cancel()
	}
}

// Finish records how Run ended.
func (g *Game) Finish(res *models.GameResult, err error, cancelled bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch {
	case cancelled:
		g.status = StatusCancelled
	case err != nil:
		g.status = StatusFailed
		g.err = err.Error()
	default:
		g.status = StatusFinished
		g.result = res
	}
}

func (g *Game) Status() Status {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.status
}

// PublicPlayer is a player as shown to the table. Secret is set only once the game is over.
type PublicPlayer struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	IsHuman bool           `json:"is_human"`
	Secret  *models.Secret `json:"secret,omitempty"`
}

// View is the JSON snapshot served by the API.
type View struct {
	ID         string             `json:"id"`
	Status     Status             `json:"status"`
	CreatedAt  time.Time          `json:"created_at"`
	Config     models.GameConfig  `json:"config"`
	Players    []PublicPlayer     `json:"players"`
	Transcript []models.Turn      `json:"transcript"`
	Log        []string           `json:"log"`
	Result     *models.GameResult `json:"result,omitempty"`
	Location   string             `json:"location,omitempty"`
	Error      string             `json:"error,omitempty"`
}

func (g *Game) View() View {
	g.mu.RLock()
	defer g.mu.RUnlock()

	v := View{
		ID:         g.ID,
		Status:     g.status,
		CreatedAt:  g.CreatedAt,
		Config:     g.Config,
		Players:    []PublicPlayer{},
		Transcript: append([]models.Turn{}, g.transcript...),
		Log:        append([]string{}, g.lines...),
		Result:     g.result,
		Error:      g.err,
	}
	over := g.status != StatusRunning
	if g.info != nil {
		for _, p := range g.info.Players {
			pp := PublicPlayer{ID: p.ID, Name: p.Name, IsHuman: p.IsHuman}
			if over {
				secret := p.Secret
				pp.Secret = &secret
			}
			v.Players = append(v.Players, pp)
		}
		if over {
			v.Location = g.info.Location
		}
	}
	return v
}

// HumanPlayer returns the human seat, if the game has one.
func (g *Game) HumanPlayer() (models.Player, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.info == nil {
		return models.Player{}, false
	}
	for _, p := range g.info.Players {
		if p.IsHuman {
			return p, true
		}
	}
	return models.Player{}, false
}

func (g *Game) Log(line string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lines = append(g.lines, line)
}

func (g *Game) Warn(msg string)               { g.Log("warning: " + msg) }
func (g *Game) Prompt(events.PromptEvent)     {}
func (g *Game) AgentCreated(events.AgentInfo) {}

func (g *Game) GameInfo(info events.GameInfo) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.info = &info
}

func (g *Game) Event(e events.Event) {
	if e.Kind != events.KindTurn {
		return
	}
	turn, ok := e.Data.(models.Turn)
	if !ok {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.transcript = append(g.transcript, turn)
}

// GameStore manages game storage
type GameStore struct {
	games map[string]*Game
	mu    sync.RWMutex
}

func NewGameStore() *GameStore {
	return &GameStore{games: make(map[string]*Game)}
}

func (s *GameStore) Get(id string) (*Game, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[id]
	if !ok {
		return nil, ErrGameNotFound
	}
	return g, nil
}

func (s *GameStore) Set(g *Game) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.games[g.ID] = g
}

// Delete cancels and removes a game.
func (s *GameStore) Delete(id string) error {
	s.mu.Lock()
	g, ok := s.games[id]
	delete(s.games, id)
	s.mu.Unlock()
	if !ok {
		return ErrGameNotFound
	}
	g.Cancel()
	return nil
}

// List returns every game, oldest first.
func (s *GameStore) List() []*Game {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// CancelAll stops every running game.
func (s *GameStore) CancelAll() {
	for _, g := range s.List() {
		g.Cancel()
	}
}
