package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/parse"
)

// MajorityThreshold is the number of yes votes that convicts among n players.
func MajorityThreshold(n int) int {
	return n/2 + 1
}

// spyGuess asks the spy to name the location and compares it to the real one.
func (g *game) spyGuess(ctx context.Context, final bool) (bool, error) {
	res, err := g.ctrl(g.spy).GuessLocation(ctx, g.view(), final)
	if err != nil {
		return false, err
	}
	correct := parse.NormalizeLocation(res.Guess) == parse.NormalizeLocation(g.pack.Location)
	g.guessText = res.Guess
	g.guessCorrect = &correct

	guess := res.Guess
	if guess == "" {
		guess = "(nothing)"
	}
	if final {
		g.log("%s makes a last guess: %s", g.spy.Name, guess)
	} else {
		g.log("%s reveals they are the spy and guesses: %s", g.spy.Name, guess)
	}
	if res.Reason != "" {
		g.log("  (%s)", res.Reason)
	}
	g.emit(events.KindGuess, events.GuessData{
		Player:  g.spy.Name,
		Guess:   res.Guess,
		Reason:  res.Reason,
		Final:   final,
		Correct: correct,
	})
	return correct, nil
}

// earlyGuess runs a voluntary mid-game guess. Either outcome ends the game.
func (g *game) earlyGuess(ctx context.Context) (models.EarlyEndResult, error) {
	correct, err := g.spyGuess(ctx, false)
	if err != nil {
		return models.NotEnded, err
	}
	if correct {
		return models.EndedWith(models.TeamSpy, "The spy revealed themselves and named the location."), nil
	}
	return models.EndedWith(models.TeamCivilians, "The spy revealed themselves but guessed the wrong location."), nil
}

// accuse runs one early accusation. An accusation that names nobody valid is skipped.
func (g *game) accuse(ctx context.Context, accuser *models.Player) (models.EarlyEndResult, error) {
	choice, err := g.ctrl(accuser).Accuse(ctx, g.view())
	if err != nil {
		return models.NotEnded, err
	}
	accused := parse.MatchExact(g.players, choice.TargetName, accuser.ID)
	if accused == nil {
		g.log("%s tried to accuse %q, but that is not another player. The accusation is skipped.", accuser.Name, choice.TargetName)
		return models.NotEnded, nil
	}

	g.log("%s accuses %s of being the spy! %s", accuser.Name, accused.Name, choice.Reason)
	defense, err := g.ctrl(accused).Defend(ctx, g.view(), accuser, choice.Reason)
	if err != nil {
		return models.NotEnded, err
	}
	g.log("%s defends: %s", accused.Name, defense)

	var voters []*models.Player
	for _, p := range g.players {
		if p.ID != accuser.ID && p.ID != accused.ID {
			voters = append(voters, p)
		}
	}
	ballots := make([]bool, len(voters))
	view := g.view()
	eg, gctx := errgroup.WithContext(ctx)
	for i, v := range voters {
		c := g.ctrl(v)
		eg.Go(func() error {
			yes, err := c.VoteOnAccusation(gctx, view, accuser, accused, choice.Reason, defense)
			ballots[i] = yes
			return err
		})
	}
	if err := eg.Wait(); err != nil {
		return models.NotEnded, err
	}

	acc := models.Accusation{
		AccuserID:   accuser.ID,
		AccuserName: accuser.Name,
		AccusedID:   accused.ID,
		AccusedName: accused.Name,
		Reason:      choice.Reason,
		Defense:     defense,
		YesVotes:    1,
		NoVotes:     1,
		Threshold:   MajorityThreshold(len(g.players)),
	}
	for i, v := range voters {
		word := "no"
		if ballots[i] {
			acc.YesVotes++
			word = "yes"
		} else {
			acc.NoVotes++
		}
		g.log("  %s votes %s", v.Name, word)
		g.emit(events.KindAccusationVote, events.AccusationVoteData{Voter: v.Name, Accused: accused.Name, Yes: ballots[i]})
	}
	acc.Convicted = acc.YesVotes >= acc.Threshold || len(voters) == 0

	g.emit(events.KindAccusation, acc)
	g.record(func() error { return g.e.recorder.AccusationMade(ctx, g.e.id, acc) })

	if !acc.Convicted {
		g.log("Only %d of %d needed votes. %s is not convicted and the game goes on.", acc.YesVotes, acc.Threshold, accused.Name)
		return models.NotEnded, nil
	}

	if !accused.IsSpy() {
		g.log("%s is convicted, but %s was not the spy!", accused.Name, accused.Name)
		return models.EndedWith(models.TeamSpy, "The civilians convicted an innocent player."), nil
	}

	g.log("%s is convicted and was the spy!", accused.Name)
	correct, err := g.spyGuess(ctx, true)
	if err != nil {
		return models.NotEnded, err
	}
	if correct {
		return models.EndedWith(models.TeamSpy, "The spy was caught but named the location."), nil
	}
	return models.EndedWith(models.TeamCivilians, "The spy was caught and could not name the location."), nil
}
