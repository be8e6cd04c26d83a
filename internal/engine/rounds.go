package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/parse"
	"github.com/tatianab/spyfall-agents/internal/rng"
)

// questionRounds plays question turns until the transcript holds cfg.Rounds turns or
// an early guess or accusation ends the game. Failed accusations do not use up a turn.
func (g *game) questionRounds(ctx context.Context) (models.EarlyEndResult, error) {
	cfg := g.e.cfg
	asker := rng.Pick(g.e.rand, g.players)
	var lastAsker *models.Player

	for len(g.transcript) < cfg.Rounds {
		if err := ctx.Err(); err != nil {
			return models.NotEnded, err
		}

		if !g.unlocked && len(g.answered) == len(g.players) {
			g.unlocked = true
			g.log("Everyone has answered at least once. Special actions are now available.")
			g.emit(events.KindActionsUnlocked, nil)
		}

		if g.unlocked {
			action, err := g.chooseAction(ctx, asker)
			if err != nil {
				return models.NotEnded, err
			}

			switch action {
			case models.ActionGuess:
				res, err := g.earlyGuess(ctx)
				if err != nil {
					return models.NotEnded, err
				}
				return res, nil

			case models.ActionAccuse:
				g.usedAccusation[asker.ID] = true
				res, err := g.accuse(ctx, asker)
				if err != nil {
					return models.NotEnded, err
				}
				if res.Ended {
					return res, nil
				}
				asker = rng.Pick(g.e.rand, g.others(asker.ID))
				lastAsker = nil
				g.log("%s will ask the next question.", asker.Name)
				continue
			}
		}

		target, err := g.askTurn(ctx, asker, lastAsker)
		if err != nil {
			return models.NotEnded, err
		}
		lastAsker, asker = asker, target
	}
	return models.NotEnded, nil
}

// chooseAction offers the asker the unlocked actions and validates the choice.
// An action the asker may not take becomes a plain question.
func (g *game) chooseAction(ctx context.Context, asker *models.Player) (models.Action, error) {
	canGuess := asker.IsSpy()
	canAccuse := g.e.cfg.EarlyVoting && !g.usedAccusation[asker.ID]
	if !canGuess && !canAccuse {
		return models.ActionQuestion, nil
	}

	action, err := g.ctrl(asker).ChooseAction(ctx, g.view(), canGuess, canAccuse)
	if err != nil {
		return "", err
	}
	switch {
	case action == models.ActionGuess && !canGuess:
		g.e.logger.Debug("guess by non-spy downgraded", zap.String("player", asker.Name))
		g.log("%s tried to guess the location but isn't the spy, so asks a question instead.", asker.Name)
		return models.ActionQuestion, nil
	case action == models.ActionAccuse && !canAccuse:
		g.e.logger.Debug("accusation not allowed, downgraded", zap.String("player", asker.Name))
		g.log("%s can't call a vote right now, so asks a question instead.", asker.Name)
		return models.ActionQuestion, nil
	}
	return action, nil
}

// askTurn plays one question and answer and returns the player who answered.
func (g *game) askTurn(ctx context.Context, asker, lastAsker *models.Player) (*models.Player, error) {
	ask, err := g.ctrl(asker).Ask(ctx, g.view(), lastAsker)
	if err != nil {
		return nil, err
	}

	lastID := ""
	if lastAsker != nil {
		lastID = lastAsker.ID
	}
	target := parse.ResolveTargetPlayer(g.players, ask.TargetName, asker.ID, lastID, g.e.rand)
	if parse.Normalize(ask.TargetName) != parse.Normalize(target.Name) {
		g.e.logger.Debug("target resolved",
			zap.String("asker", asker.Name),
			zap.String("raw", ask.TargetName),
			zap.String("target", target.Name))
	}

	g.log("%s asks %s: %s", asker.Name, target.Name, ask.Question)
	if err := g.reactions(ctx, fmt.Sprintf("%s asked %s: %q", asker.Name, target.Name, ask.Question), asker, target); err != nil {
		return nil, err
	}

	ans, err := g.ctrl(target).Answer(ctx, g.view(), asker, ask.Question)
	if err != nil {
		return nil, err
	}

	turn := models.Turn{
		AskerID:    asker.ID,
		AskerName:  asker.Name,
		TargetID:   target.ID,
		TargetName: target.Name,
		Question:   ask.Question,
		Answer:     ans.Answer,
	}
	g.transcript = append(g.transcript, turn)
	g.answered[target.ID] = true

	g.log("%s answers: %s", target.Name, ans.Answer)
	g.emit(events.KindTurn, turn)
	index := len(g.transcript) - 1
	g.record(func() error { return g.e.recorder.TurnCompleted(ctx, g.e.id, index, turn) })

	if err := g.reactions(ctx, fmt.Sprintf("%s answered %s: %q", target.Name, asker.Name, ans.Answer), asker, target); err != nil {
		return nil, err
	}
	return target, nil
}

// reactions lets AI bystanders react to event. Who reacts is sampled up front; the
// reactions themselves are collected concurrently and reported in seat order.
func (g *game) reactions(ctx context.Context, event string, asker, target *models.Player) error {
	p := g.e.cfg.Reactions.Probability()
	var reactors []*models.Player
	for _, pl := range g.players {
		if pl.IsHuman || pl.ID == asker.ID || pl.ID == target.ID {
			continue
		}
		if g.e.rand.Chance(p) {
			reactors = append(reactors, pl)
		}
	}
	if len(reactors) == 0 {
		return nil
	}

	view := g.view()
	out := make([]string, len(reactors))
	eg, gctx := errgroup.WithContext(ctx)
	for i, pl := range reactors {
		c := g.ctrl(pl)
		eg.Go(func() error {
			r, err := c.React(gctx, view, event)
			out[i] = r
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	for i, pl := range reactors {
		if out[i] == "" {
			continue
		}
		g.log("  %s: %s", pl.Name, out[i])
		g.emit(events.KindReaction, events.ReactionData{Player: pl.Name, Text: out[i]})
	}
	return nil
}
