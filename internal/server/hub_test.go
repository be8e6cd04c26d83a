package server

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/models"
)

func TestHubReplaysBacklog(t *testing.T) {
	h := NewHub(zap.NewNop(), false)
	h.Log("one")

	backlog, ch, unsubscribe := h.Subscribe()
	defer unsubscribe()
	require.Len(t, backlog, 1)
	assert.Equal(t, EventLog, backlog[0].Event)
	assert.JSONEq(t, `{"line":"one"}`, string(backlog[0].Data))

	h.Warn("two")
	msg := <-ch
	assert.Equal(t, 2, msg.ID)
	assert.Equal(t, EventWarn, msg.Event)

	h.Close()
	_, ok := <-ch
	assert.False(t, ok)

	h.Log("dropped")
	late, lateCh, _ := h.Subscribe()
	assert.Len(t, late, 2)
	_, ok = <-lateCh
	assert.False(t, ok)
}

func TestHubHidesSecrets(t *testing.T) {
	h := NewHub(zap.NewNop(), false)
	h.GameInfo(events.GameInfo{
		Location: "Casino",
		Players: []models.Player{
			{ID: "p1", Name: "You", IsHuman: true, Secret: models.CivilianSecret("Casino", "Dealer")},
			{ID: "p2", Name: "GPT-2", Secret: models.SpySecret()},
		},
	})
	h.Prompt(events.PromptEvent{ID: "x"})
	h.AgentCreated(events.AgentInfo{Name: "GPT-2", SystemPrompt: "You are the SPY"})

	backlog := h.Backlog()
	require.Len(t, backlog, 2)
	assert.Equal(t, EventPlayers, backlog[0].Event)
	assert.NotContains(t, string(backlog[0].Data), "spy\":true")
	assert.NotContains(t, string(backlog[0].Data), "Casino")

	var secret secretData
	require.NoError(t, json.Unmarshal(backlog[1].Data, &secret))
	assert.Equal(t, "You", secret.Player)
	assert.Equal(t, "Dealer", secret.Secret.Role)

	inspect := NewHub(zap.NewNop(), true)
	inspect.Prompt(events.PromptEvent{ID: "x"})
	assert.Len(t, inspect.Backlog(), 1)
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(zap.NewNop(), false)
	_, ch, unsubscribe := h.Subscribe()
	unsubscribe()
	unsubscribe()
	_, ok := <-ch
	assert.False(t, ok)

	done := make(chan struct{})
	go func() {
		h.Log("nobody listening")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked without clients")
	}
}

func TestHubDropsForFullClient(t *testing.T) {
	h := NewHub(zap.NewNop(), false)
	_, ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for range clientBufferSize + 10 {
			h.Log("line")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish waited on a stalled client")
	}

	assert.Len(t, ch, clientBufferSize)
	assert.Len(t, h.Backlog(), clientBufferSize+10)
}

func TestHubSubscribeDuringPublish(t *testing.T) {
	const total = 50
	h := NewHub(zap.NewNop(), false)

	started := make(chan struct{})
	published := make(chan struct{})
	go func() {
		for i := range total {
			h.Log("line")
			if i == 0 {
				close(started)
			}
		}
		close(published)
	}()

	<-started
	backlog, ch, unsubscribe := h.Subscribe()
	defer unsubscribe()
	<-published
	h.Close()

	seen := make(map[int]int)
	for _, msg := range backlog {
		seen[msg.ID]++
	}
	for msg := range ch {
		seen[msg.ID]++
	}
	require.Len(t, seen, total)
	for id, n := range seen {
		assert.Equal(t, 1, n, "message %d delivered %d times", id, n)
	}
}

func TestWebInput(t *testing.T) {
	rec := &events.Recorder{}
	in := NewWebInput("You", rec)
	assert.ErrorIs(t, in.Submit("early"), ErrNoPendingInput)

	got := make(chan string, 1)
	go func() {
		line, _ := in.ReadLine(context.Background(), "Your answer:")
		got <- line
	}()
	require.Eventually(t, func() bool { _, ok := in.Pending(); return ok }, time.Second, time.Millisecond)
	prompt, _ := in.Pending()
	assert.Equal(t, "Your answer:", prompt)
	require.NoError(t, in.Submit("the beach"))
	assert.Equal(t, "the beach", <-got)

	_, pending := in.Pending()
	assert.False(t, pending)

	reqs := rec.EventsOf(events.KindInputRequest)
	require.Len(t, reqs, 1)
	assert.Equal(t, events.InputRequestData{Player: "You", Prompt: "Your answer:"}, reqs[0].Data)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := in.ReadLine(ctx, "again")
	assert.ErrorIs(t, err, context.Canceled)
	_, pending = in.Pending()
	assert.False(t, pending)
}
