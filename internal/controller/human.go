package controller

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/parse"
)

// InputChannel requests one line of text from a person and waits for it.
type InputChannel interface {
	ReadLine(ctx context.Context, prompt string) (string, error)
}

// Human drives a player from an InputChannel. It never reacts spontaneously.
type Human struct {
	player *models.Player
	in     InputChannel
}

func NewHuman(p *models.Player, in InputChannel) *Human {
	return &Human{player: p, in: in}
}

func (h *Human) Player() *models.Player          { return h.player }
func (h *Human) Ready(ctx context.Context) error { return nil }
func (h *Human) Close(ctx context.Context) error { return nil }

func (h *Human) read(ctx context.Context, format string, args ...any) (string, error) {
	line, err := h.in.ReadLine(ctx, fmt.Sprintf(format, args...))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (h *Human) Ask(ctx context.Context, v View, lastAsker *models.Player) (AskResult, error) {
	var targets []*models.Player
	for _, p := range v.Others(h.player.ID) {
		if lastAsker != nil && p.ID == lastAsker.ID {
			continue
		}
		targets = append(targets, p)
	}
	target, err := h.read(ctx, "Who do you want to ask? (%s)", names(targets))
	if err != nil {
		return AskResult{}, err
	}
	question, err := h.read(ctx, "Your question for %s:", target)
	if err != nil {
		return AskResult{}, err
	}
	if question == "" {
		question = fallbackQuestion
	}
	return AskResult{TargetName: target, Question: question}, nil
}

func (h *Human) Answer(ctx context.Context, v View, asker *models.Player, question string) (AnswerResult, error) {
	answer, err := h.read(ctx, "%s asks you: %q\nYour answer:", asker.Name, question)
	if err != nil {
		return AnswerResult{}, err
	}
	return AnswerResult{Answer: answer}, nil
}

func (h *Human) GuessLocation(ctx context.Context, v View, final bool) (GuessResult, error) {
	intro := "Guess the location"
	if final {
		intro = "You were caught! Last chance to guess the location"
	}
	guess, err := h.read(ctx, "%s (%s):", intro, strings.Join(v.Locations, ", "))
	if err != nil {
		return GuessResult{}, err
	}
	return GuessResult{Guess: guess}, nil
}

func (h *Human) Vote(ctx context.Context, v View) (Choice, error) {
	target, err := h.read(ctx, "Vote for the spy (%s):", names(v.Others(h.player.ID)))
	if err != nil {
		return Choice{}, err
	}
	return Choice{TargetName: target}, nil
}

func (h *Human) React(ctx context.Context, v View, event string) (string, error) {
	return "", nil
}

func (h *Human) ChooseAction(ctx context.Context, v View, canGuess, canAccuse bool) (models.Action, error) {
	options := []string{string(models.ActionQuestion)}
	if canGuess {
		options = append(options, string(models.ActionGuess))
	}
	if canAccuse {
		options = append(options, string(models.ActionAccuse))
	}
	if len(options) == 1 {
		return models.ActionQuestion, nil
	}
	choice, err := h.read(ctx, "Choose an action (%s):", strings.Join(options, ", "))
	if err != nil {
		return "", err
	}
	return models.ParseAction(choice), nil
}

func (h *Human) Accuse(ctx context.Context, v View) (Choice, error) {
	target, err := h.read(ctx, "Who do you accuse? (%s)", names(v.Others(h.player.ID)))
	if err != nil {
		return Choice{}, err
	}
	reason, err := h.read(ctx, "Why do you think %s is the spy?", target)
	if err != nil {
		return Choice{}, err
	}
	return Choice{TargetName: target, Reason: reason}, nil
}

func (h *Human) Defend(ctx context.Context, v View, accuser *models.Player, reason string) (string, error) {
	return h.read(ctx, "%s accuses you of being the spy: %q\nYour defense:", accuser.Name, reason)
}

func (h *Human) VoteOnAccusation(ctx context.Context, v View, accuser, accused *models.Player, reason, defense string) (bool, error) {
	answer, err := h.read(ctx, "%s accuses %s (%q). %s says: %q\nIs %s the spy? (yes/no)",
		accuser.Name, accused.Name, reason, accused.Name, defense, accused.Name)
	if err != nil {
		return false, err
	}
	return parse.ParseYesNo(answer), nil
}

// ConsoleInput reads lines from r and writes prompts to w. A pending read is
// abandoned when its context ends; the line it was waiting for goes to the next read.
type ConsoleInput struct {
	w io.Writer

	once  sync.Once
	r     io.Reader
	lines chan string
}

func NewConsoleInput(r io.Reader, w io.Writer) *ConsoleInput {
	return &ConsoleInput{r: r, w: w, lines: make(chan string)}
}

func (c *ConsoleInput) start() {
	go func() {
		defer close(c.lines)
		scanner := bufio.NewScanner(c.r)
		for scanner.Scan() {
			c.lines <- scanner.Text()
		}
	}()
}

func (c *ConsoleInput) ReadLine(ctx context.Context, prompt string) (string, error) {
	c.once.Do(c.start)
	fmt.Fprintf(c.w, "%s\n> ", prompt)
	select {
	case line, ok := <-c.lines:
		if !ok {
			return "", io.EOF
		}
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
