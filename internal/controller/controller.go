// Package controller gives the engine one decision-making interface per player,
// whether a person or a model sits behind it.
package controller

import (
	"context"
	"strings"

	"github.com/tatianab/spyfall-agents/internal/models"
)

// View is the public table state a controller may reason about.
type View struct {
	Players    []*models.Player
	Transcript []models.Turn
	// Locations is every location the spy could be at.
	Locations []string
}

// Others returns every player except self.
func (v View) Others(selfID string) []*models.Player {
	out := make([]*models.Player, 0, len(v.Players))
	for _, p := range v.Players {
		if p.ID != selfID {
			out = append(out, p)
		}
	}
	return out
}

type AskResult struct {
	TargetName string
	Question   string
	Thought    string
}

type AnswerResult struct {
	Answer  string
	Thought string
}

type GuessResult struct {
	Guess  string
	Reason string
}

// Choice names a player with a justification. Used for votes and accusations.
type Choice struct {
	TargetName string
	Reason     string
}

// Controller is implemented by Human and AI. Errors are returned only when the
// player cannot respond at all (cancelled context, closed input); malformed content
// is absorbed with fallbacks.
type Controller interface {
	Player() *models.Player
	Ready(ctx context.Context) error

	Ask(ctx context.Context, v View, lastAsker *models.Player) (AskResult, error)
	Answer(ctx context.Context, v View, asker *models.Player, question string) (AnswerResult, error)
	GuessLocation(ctx context.Context, v View, final bool) (GuessResult, error)
	Vote(ctx context.Context, v View) (Choice, error)
	React(ctx context.Context, v View, event string) (string, error)
	ChooseAction(ctx context.Context, v View, canGuess, canAccuse bool) (models.Action, error)
	Accuse(ctx context.Context, v View) (Choice, error)
	Defend(ctx context.Context, v View, accuser *models.Player, reason string) (string, error)
	VoteOnAccusation(ctx context.Context, v View, accuser, accused *models.Player, reason, defense string) (bool, error)

	Close(ctx context.Context) error
}

func names(players []*models.Player) string {
	ns := make([]string, len(players))
	for i, p := range players {
		ns[i] = p.Name
	}
	return strings.Join(ns, ", ")
}
