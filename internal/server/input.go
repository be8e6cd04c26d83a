package server

import (
	"context"
	"errors"
	"sync"

	"github.com/tatianab/spyfall-agents/internal/events"
)

// ErrNoPendingInput is returned when input arrives while the game is not waiting for any.
var ErrNoPendingInput = errors.New("no input is pending")

// WebInput is the human seat of a web game. Each prompt is published as an
// input_request event and the read waits for Submit.
type WebInput struct {
	player string
	sink   events.Sink

	mu      sync.Mutex
	pending chan string
	prompt  string
}

func NewWebInput(player string, sink events.Sink) *WebInput {
	return &WebInput{player: player, sink: events.OrNop(sink)}
}

func (w *WebInput) ReadLine(ctx context.Context, prompt string) (string, error) {
	reply := make(chan string, 1)
	w.mu.Lock()
	w.pending = reply
	w.prompt = prompt
	w.mu.Unlock()

	defer func() {
		w.mu.Lock()
		if w.pending == reply {
			w.pending = nil
			w.prompt = ""
		}
		w.mu.Unlock()
	}()

	w.sink.Event(events.NewEvent(events.KindInputRequest, events.InputRequestData{Player: w.player, Prompt: prompt}))

	select {
	case line := <-reply:
		return line, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Submit answers the pending prompt.
func (w *WebInput) Submit(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.pending == nil {
		return ErrNoPendingInput
	}
	w.pending <- text
	w.pending = nil
	w.prompt = ""
	return nil
}

// Pending returns the prompt currently waiting for an answer.
func (w *WebInput) Pending() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.prompt, w.pending != nil
}
