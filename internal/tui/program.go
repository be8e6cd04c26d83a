package tui

import (
	"context"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/tatianab/spyfall-agents/internal/controller"
	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
)

// PlayFunc runs one game, reporting to sink and reading the human's lines from human.
type PlayFunc func(ctx context.Context, sink events.Sink, human controller.InputChannel) (*models.GameResult, error)

type sender interface {
	Send(msg tea.Msg)
}

// sink forwards what the engine reports into the program.
type sink struct {
	p sender
}

func (s sink) Log(line string)               { s.p.Send(logMsg{line}) }
func (s sink) Warn(msg string)               { s.p.Send(warnMsg{msg}) }
func (s sink) Prompt(events.PromptEvent)     {}
func (s sink) AgentCreated(events.AgentInfo) {}
func (s sink) GameInfo(info events.GameInfo) { s.p.Send(infoMsg{info}) }
func (s sink) Event(e events.Event)          { s.p.Send(eventMsg{e}) }

// input asks the program for a line and waits for Enter.
type input struct {
	p sender
}

func (in input) ReadLine(ctx context.Context, prompt string) (string, error) {
	reply := make(chan string, 1)
	in.p.Send(promptMsg{prompt: prompt, reply: reply})
	select {
	case line := <-reply:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Run shows the game in the terminal until the player leaves. Closing the program
// cancels a game still in progress. extra receives everything the program does.
func Run(ctx context.Context, play PlayFunc, extra events.Sink) (*models.GameResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	p := tea.NewProgram(newModel(cancel, renderer), tea.WithAltScreen(), tea.WithContext(ctx))

	var (
		wg     sync.WaitGroup
		result *models.GameResult
		err    error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		result, err = play(ctx, events.Multi{sink{p}, events.OrNop(extra)}, input{p})
		p.Send(doneMsg{result: result, err: err})
	}()

	_, runErr := p.Run()
	cancel()
	wg.Wait()
	if err != nil {
		return nil, err
	}
	if runErr != nil && ctx.Err() == nil {
		return nil, runErr
	}
	return result, nil
}
