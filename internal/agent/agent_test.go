package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/spyfall-agents/internal/events"
	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/models"
)

type chatClient struct {
	replies []string
	err     error
	seen    [][]llm.Message
	closed  bool
}

func (c *chatClient) Chat(ctx context.Context, msgs []llm.Message) (string, error) {
	c.seen = append(c.seen, append([]llm.Message(nil), msgs...))
	if c.err != nil {
		return "", c.err
	}
	r := c.replies[0]
	c.replies = c.replies[1:]
	return r, nil
}

func (c *chatClient) Close() error {
	c.closed = true
	return nil
}

type session struct {
	sent   []string
	err    error
	closed bool
}

func (s *session) Send(ctx context.Context, text string) (string, error) {
	s.sent = append(s.sent, text)
	if s.err != nil {
		return "", s.err
	}
	return "ok " + text, nil
}

func (s *session) Close(ctx context.Context) error {
	s.closed = true
	return errors.New("already gone")
}

type statefulClient struct {
	chatClient
	sess    *session
	openErr error
	system  string
}

func (c *statefulClient) NewSession(ctx context.Context, system string) (llm.Session, error) {
	if c.openErr != nil {
		return nil, c.openErr
	}
	c.system = system
	return c.sess, nil
}

func TestMemoryModeSendsWholeHistory(t *testing.T) {
	client := &chatClient{replies: []string{"one", "two"}}
	rec := &events.Recorder{}
	a := New(Options{Name: "GPT-1", Provider: llm.ProviderOpenAI, Mode: models.ModeMemory, SystemPrompt: "sys", Client: client, Sink: rec})
	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, "one", a.Say(context.Background(), "q1"))
	assert.Equal(t, "two", a.Say(context.Background(), "q2"))

	require.Len(t, client.seen, 2)
	assert.Len(t, client.seen[0], 2)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "q1"},
		{Role: llm.RoleAssistant, Content: "one"},
		{Role: llm.RoleUser, Content: "q2"},
	}, client.seen[1])
	assert.Len(t, a.History(), 5)

	require.Len(t, rec.Agents, 1)
	assert.Equal(t, "memory", rec.Agents[0].Mode)
}

func TestPromptEventsCorrelate(t *testing.T) {
	client := &chatClient{replies: []string{"a", "b"}}
	rec := &events.Recorder{}
	a := New(Options{Name: "GPT-1", Client: client, Sink: rec})

	a.Say(context.Background(), "x")
	a.Say(context.Background(), "y")

	require.Len(t, rec.Prompts, 4)
	assert.Equal(t, events.Sent, rec.Prompts[0].Direction)
	assert.Equal(t, events.Received, rec.Prompts[1].Direction)
	assert.Equal(t, rec.Prompts[0].ID, rec.Prompts[1].ID)
	assert.Equal(t, rec.Prompts[2].ID, rec.Prompts[3].ID)
	assert.NotEqual(t, rec.Prompts[0].ID, rec.Prompts[2].ID)
	assert.Equal(t, "b", rec.Prompts[3].Response)
}

func TestProviderErrorBecomesText(t *testing.T) {
	client := &chatClient{err: errors.New("boom")}
	rec := &events.Recorder{}
	a := New(Options{Name: "Claude-2", Client: client, Sink: rec})

	assert.Equal(t, "[error: boom]", a.Say(context.Background(), "q"))
	assert.Len(t, a.History(), 1, "failed turn is not kept")
	assert.Equal(t, "boom", rec.Prompts[1].Error)
}

func TestStatefulModeSendsOnlyLatest(t *testing.T) {
	sess := &session{}
	client := &statefulClient{sess: sess}
	a := New(Options{Name: "GPT-1", Mode: models.ModeStateful, SystemPrompt: "sys", Client: client})
	require.NoError(t, a.Init(context.Background()))

	assert.Equal(t, "ok hello", a.Say(context.Background(), "hello"))
	assert.Equal(t, []string{"hello"}, sess.sent)
	assert.Equal(t, "sys", client.system)
	assert.Empty(t, client.seen)
	assert.Equal(t, models.ModeStateful, a.Mode())

	err := a.Close(context.Background())
	assert.Error(t, err)
	assert.True(t, sess.closed)
	assert.True(t, client.closed, "client closed even when the session close fails")
}

func TestStatefulErrorBecomesText(t *testing.T) {
	sess := &session{err: errors.New("expired")}
	a := New(Options{Name: "GPT-1", Mode: models.ModeStateful, Client: &statefulClient{sess: sess}})
	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, "[error: expired]", a.Say(context.Background(), "hi"))
}

func TestStatefulDowngradesWithoutSessions(t *testing.T) {
	rec := &events.Recorder{}
	client := &chatClient{replies: []string{"r"}}
	a := New(Options{Name: "Claude-1", Provider: llm.ProviderAnthropic, Mode: models.ModeStateful, Client: client, Sink: rec})

	assert.Equal(t, models.ModeMemory, a.Mode())
	require.Len(t, rec.Warns, 1)
	assert.Contains(t, rec.Warns[0], "memory mode")
	assert.Equal(t, "memory", rec.Agents[0].Mode)

	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, "r", a.Say(context.Background(), "q"))
}

func TestStatefulDowngradesWhenSessionFails(t *testing.T) {
	rec := &events.Recorder{}
	client := &statefulClient{chatClient: chatClient{replies: []string{"r"}}, openErr: errors.New("nope")}
	a := New(Options{Name: "GPT-1", Mode: models.ModeStateful, Client: client, Sink: rec})

	require.NoError(t, a.Init(context.Background()))
	assert.Equal(t, models.ModeMemory, a.Mode())
	assert.Len(t, rec.Warns, 1)
	assert.Equal(t, "r", a.Say(context.Background(), "q"))
}

func TestStatefulSayWithoutInitOpensSession(t *testing.T) {
	sess := &session{}
	client := &statefulClient{sess: sess}
	a := New(Options{Name: "GPT-1", Mode: models.ModeStateful, SystemPrompt: "sys", Client: client})

	assert.Equal(t, "ok hello", a.Say(context.Background(), "hello"))
	assert.Equal(t, "sys", client.system)
	assert.Equal(t, []string{"hello"}, sess.sent)
	assert.Empty(t, client.seen)
}

func TestStatefulSayWithoutInitKeepsSystemPromptOnDowngrade(t *testing.T) {
	client := &statefulClient{chatClient: chatClient{replies: []string{"r"}}, openErr: errors.New("nope")}
	a := New(Options{Name: "GPT-1", Mode: models.ModeStateful, SystemPrompt: "sys", Client: client})

	assert.Equal(t, "r", a.Say(context.Background(), "q"))
	assert.Equal(t, models.ModeMemory, a.Mode())
	require.Len(t, client.seen, 1)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleSystem, Content: "sys"},
		{Role: llm.RoleUser, Content: "q"},
	}, client.seen[0])
}
