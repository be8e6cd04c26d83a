package controller

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/agent"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/parse"
)

const fallbackQuestion = "What is the first thing you noticed when you arrived here?"

// AI drives a player through an Agent. Each decision renders a prompt, asks the model,
// and pulls labeled fields out of the reply. Unresolved names are left raw for the engine.
type AI struct {
	player *models.Player
	agent  *agent.Agent
	logger *zap.Logger
}

func NewAI(p *models.Player, a *agent.Agent, logger *zap.Logger) *AI {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AI{player: p, agent: a, logger: logger.Named("ai").With(zap.String("player", p.Name))}
}

func (c *AI) Player() *models.Player { return c.player }

func (c *AI) Ready(ctx context.Context) error {
	return c.agent.Init(ctx)
}

func (c *AI) Close(ctx context.Context) error {
	return c.agent.Close(ctx)
}

func (c *AI) say(ctx context.Context, tmpl string, data promptData) (string, error) {
	prompt, err := render(tmpl, data)
	if err != nil {
		return "", err
	}
	reply := c.agent.Say(ctx, prompt)
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return reply, nil
}

func (c *AI) Ask(ctx context.Context, v View, lastAsker *models.Player) (AskResult, error) {
	var targets []*models.Player
	for _, p := range v.Others(c.player.ID) {
		if lastAsker != nil && p.ID == lastAsker.ID {
			continue
		}
		targets = append(targets, p)
	}

	reply, err := c.say(ctx, "ask.txt", promptData{Transcript: v.Transcript, Targets: names(targets)})
	if err != nil {
		return AskResult{}, err
	}
	res := AskResult{
		TargetName: parse.ParseField("TARGET", reply),
		Question:   parse.ParseField("QUESTION", reply),
		Thought:    parse.ParseField("THOUGHT", reply),
	}
	if res.Question == "" {
		c.logger.Debug("no QUESTION field, using fallback")
		res.Question = fallbackQuestion
	}
	return res, nil
}

func (c *AI) Answer(ctx context.Context, v View, asker *models.Player, question string) (AnswerResult, error) {
	reply, err := c.say(ctx, "answer.txt", promptData{Transcript: v.Transcript, Asker: asker.Name, Question: question})
	if err != nil {
		return AnswerResult{}, err
	}
	res := AnswerResult{
		Answer:  parse.ParseField("ANSWER", reply),
		Thought: parse.ParseField("THOUGHT", reply),
	}
	if res.Answer == "" {
		res.Answer = strings.TrimSpace(reply)
	}
	return res, nil
}

func (c *AI) GuessLocation(ctx context.Context, v View, final bool) (GuessResult, error) {
	reply, err := c.say(ctx, "guess.txt", promptData{
		Transcript: v.Transcript,
		Final:      final,
		Locations:  strings.Join(v.Locations, ", "),
	})
	if err != nil {
		return GuessResult{}, err
	}
	return GuessResult{
		Guess:  parse.ParseField("GUESS", reply),
		Reason: parse.ParseField("REASON", reply),
	}, nil
}

func (c *AI) Vote(ctx context.Context, v View) (Choice, error) {
	reply, err := c.say(ctx, "vote.txt", promptData{Transcript: v.Transcript, Targets: names(v.Others(c.player.ID))})
	if err != nil {
		return Choice{}, err
	}
	return Choice{
		TargetName: parse.ParseField("VOTE", reply),
		Reason:     parse.ParseField("REASON", reply),
	}, nil
}

func (c *AI) React(ctx context.Context, v View, event string) (string, error) {
	reply, err := c.say(ctx, "react.txt", promptData{Event: event})
	if err != nil {
		return "", err
	}
	if r := parse.ParseField("REACTION", reply); r != "" {
		return r, nil
	}
	reply = strings.TrimSpace(reply)
	if strings.HasPrefix(reply, "[error:") {
		return "", nil
	}
	first, _, _ := strings.Cut(reply, "\n")
	return strings.TrimSpace(first), nil
}

func (c *AI) ChooseAction(ctx context.Context, v View, canGuess, canAccuse bool) (models.Action, error) {
	reply, err := c.say(ctx, "action.txt", promptData{Transcript: v.Transcript, CanGuess: canGuess, CanAccuse: canAccuse})
	if err != nil {
		return "", err
	}
	return models.ParseAction(parse.ParseField("ACTION", reply)), nil
}

func (c *AI) Accuse(ctx context.Context, v View) (Choice, error) {
	reply, err := c.say(ctx, "accuse.txt", promptData{Transcript: v.Transcript, Targets: names(v.Others(c.player.ID))})
	if err != nil {
		return Choice{}, err
	}
	return Choice{
		TargetName: parse.ParseField("ACCUSE", reply),
		Reason:     parse.ParseField("REASON", reply),
	}, nil
}

func (c *AI) Defend(ctx context.Context, v View, accuser *models.Player, reason string) (string, error) {
	reply, err := c.say(ctx, "defend.txt", promptData{Transcript: v.Transcript, Accuser: accuser.Name, Reason: reason})
	if err != nil {
		return "", err
	}
	if d := parse.ParseField("DEFENSE", reply); d != "" {
		return d, nil
	}
	return strings.TrimSpace(reply), nil
}

// VoteOnAccusation defaults to no when the model gives no readable decision.
func (c *AI) VoteOnAccusation(ctx context.Context, v View, accuser, accused *models.Player, reason, defense string) (bool, error) {
	reply, err := c.say(ctx, "accusation_vote.txt", promptData{
		Transcript: v.Transcript,
		Accuser:    accuser.Name,
		Accused:    accused.Name,
		Reason:     reason,
		Defense:    defense,
	})
	if err != nil {
		return false, err
	}
	return parse.ParseYesNo(parse.ParseField("DECISION", reply)), nil
}
