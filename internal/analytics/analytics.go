// Package analytics records games as they are played. Recorders are passive:
// the engine logs their errors and carries on.
package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/tatianab/spyfall-agents/internal/models"
)

// GameStart is what is known about a game once setup is done.
type GameStart struct {
	ID        string
	StartedAt time.Time
	Config    models.GameConfig
	Location  string
	Players   []models.Player
}

type Recorder interface {
	GameStarted(ctx context.Context, g GameStart) error
	TurnCompleted(ctx context.Context, gameID string, index int, turn models.Turn) error
	VotesCast(ctx context.Context, gameID string, votes []models.Vote) error
	AccusationMade(ctx context.Context, gameID string, acc models.Accusation) error
	GameEnded(ctx context.Context, gameID string, result models.GameResult) error
}

// Summary is one line of game history.
type Summary struct {
	ID        string      `json:"id"`
	StartedAt time.Time   `json:"started_at"`
	Location  string      `json:"location"`
	Players   int         `json:"players"`
	Turns     int         `json:"turns"`
	Winner    models.Team `json:"winner,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// Lister is implemented by recorders that can list past games.
type Lister interface {
	ListGames(ctx context.Context) ([]Summary, error)
}

// Nop records nothing.
type Nop struct{}

func (Nop) GameStarted(context.Context, GameStart) error                    { return nil }
func (Nop) TurnCompleted(context.Context, string, int, models.Turn) error   { return nil }
func (Nop) VotesCast(context.Context, string, []models.Vote) error          { return nil }
func (Nop) AccusationMade(context.Context, string, models.Accusation) error { return nil }
func (Nop) GameEnded(context.Context, string, models.GameResult) error      { return nil }

// Kind selects a recorder backend.
type Kind string

const (
	KindNone     Kind = "none"
	KindFile     Kind = "file"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

// Options configures Open.
type Options struct {
	Kind        Kind
	DataDir     string
	SQLitePath  string
	DatabaseURL string
}

// Open builds the configured recorder. The returned close function is never nil.
func Open(ctx context.Context, opts Options) (Recorder, func() error, error) {
	noop := func() error { return nil }
	switch opts.Kind {
	case "", KindFile:
		return NewFileRecorder(opts.DataDir), noop, nil
	case KindNone:
		return Nop{}, noop, nil
	case KindSQLite:
		r, err := OpenSQLite(ctx, opts.SQLitePath)
		if err != nil {
			return nil, noop, err
		}
		return r, r.Close, nil
	case KindPostgres:
		r, err := OpenPostgres(ctx, opts.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return r, func() error { r.Close(); return nil }, nil
	default:
		return nil, noop, fmt.Errorf("unknown analytics backend %q", opts.Kind)
	}
}
