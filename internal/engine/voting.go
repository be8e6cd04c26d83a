package engine

import (
	"context"
	"sort"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/parse"
	"github.com/tatianab/spyfall-agents/internal/rng"
)

// TallyVotes counts votes per target, highest first. Equal top counts are a tie
// and accuse nobody.
func TallyVotes(votes []models.Vote) models.Tally {
	counts := make(map[string]*models.VoteCount)
	for _, v := range votes {
		c, ok := counts[v.TargetID]
		if !ok {
			c = &models.VoteCount{PlayerID: v.TargetID, Name: v.TargetName}
			counts[v.TargetID] = c
		}
		c.Count++
	}

	var t models.Tally
	for _, c := range counts {
		t.Counts = append(t.Counts, *c)
	}
	sort.Slice(t.Counts, func(i, j int) bool {
		if t.Counts[i].Count != t.Counts[j].Count {
			return t.Counts[i].Count > t.Counts[j].Count
		}
		return t.Counts[i].Name < t.Counts[j].Name
	})

	switch {
	case len(t.Counts) == 0:
		t.IsTie = true
	case len(t.Counts) > 1 && t.Counts[0].Count == t.Counts[1].Count:
		t.IsTie = true
	default:
		t.AccusedID = t.Counts[0].PlayerID
		t.AccusedName = t.Counts[0].Name
	}
	return t
}

// collectVotes asks every player in seat order for a final vote. A name that does not
// match another player exactly becomes a random other player.
func (g *game) collectVotes(ctx context.Context) ([]models.Vote, error) {
	g.log("Questions are over. Everyone votes for the spy.")
	votes := make([]models.Vote, 0, len(g.players))
	for _, p := range g.players {
		choice, err := g.ctrl(p).Vote(ctx, g.view())
		if err != nil {
			return nil, err
		}
		target := parse.MatchExact(g.players, choice.TargetName, p.ID)
		if target == nil {
			target = rng.Pick(g.e.rand, g.others(p.ID))
			g.e.logger.Debug("vote fell back to a random player")
		}
		v := models.Vote{
			VoterID:    p.ID,
			VoterName:  p.Name,
			TargetID:   target.ID,
			TargetName: target.Name,
			Reason:     choice.Reason,
		}
		votes = append(votes, v)
		g.log("%s votes for %s", p.Name, target.Name)
		g.emit(events.KindVote, v)
	}
	g.record(func() error { return g.e.recorder.VotesCast(ctx, g.e.id, votes) })
	return votes, nil
}

// voteAndVerdict runs the final vote, the verdict and, when the spy was accused or
// the vote tied, the spy's last guess.
func (g *game) voteAndVerdict(ctx context.Context) (models.Team, string, string, error) {
	votes, err := g.collectVotes(ctx)
	if err != nil {
		return "", "", "", err
	}
	tally := TallyVotes(votes)
	g.emit(events.KindVerdict, events.VerdictData{Tally: tally, SpyName: g.spy.Name})

	accusedSpy := tally.AccusedID == g.spy.ID
	switch {
	case tally.IsTie:
		g.log("The vote is tied, nobody is accused. %s was the spy and gets one guess.", g.spy.Name)
	case accusedSpy:
		g.log("The table accuses %s, who was the spy!", tally.AccusedName)
	default:
		g.log("The table accuses %s, but the spy was %s.", tally.AccusedName, g.spy.Name)
		return models.TeamSpy, "The civilians accused the wrong player.", tally.AccusedID, nil
	}

	correct, err := g.spyGuess(ctx, true)
	if err != nil {
		return "", "", "", err
	}
	switch {
	case correct && tally.IsTie:
		return models.TeamSpy, "The vote tied and the spy named the location.", "", nil
	case correct:
		return models.TeamSpy, "The spy was caught but named the location.", tally.AccusedID, nil
	case tally.IsTie:
		return models.TeamCivilians, "The vote tied and the spy could not name the location.", "", nil
	default:
		return models.TeamCivilians, "The spy was caught and could not name the location.", tally.AccusedID, nil
	}
}
