package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChatCompletions(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"choices":[{"message":{"content":"ANSWER: sunny"}}]}`))
	}))
	defer srv.Close()

	c := NewGroqClient(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "m"})
	out, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "weather?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "ANSWER: sunny", out)
	assert.Equal(t, "m", got.Model)
	assert.Len(t, got.Messages, 2)
}

func TestChatCompletionsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL})
	_, err := c.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestOpenAISessionChainsAndDeletes(t *testing.T) {
	var (
		mu       sync.Mutex
		prevIDs  []string
		instr    []string
		deleted  []string
		nextResp = 0
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/responses":
			var req responsesRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.True(t, req.Store)
			prevIDs = append(prevIDs, req.PreviousResponseID)
			instr = append(instr, req.Instructions)
			nextResp++
			id := "resp_" + strings.Repeat("x", nextResp)
			json.NewEncoder(w).Encode(map[string]any{
				"id": id,
				"output": []any{
					map[string]any{"type": "reasoning"},
					map[string]any{"type": "message", "content": []any{
						map[string]any{"type": "output_text", "text": "reply " + id},
					}},
				},
			})
		case r.Method == http.MethodDelete:
			deleted = append(deleted, strings.TrimPrefix(r.URL.Path, "/responses/"))
			w.Write([]byte(`{"deleted":true}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewOpenAIClient(Config{APIKey: "k", BaseURL: srv.URL})
	s, err := c.NewSession(context.Background(), "you are GPT-1")
	require.NoError(t, err)

	out, err := s.Send(context.Background(), "first")
	require.NoError(t, err)
	assert.Equal(t, "reply resp_x", out)
	_, err = s.Send(context.Background(), "second")
	require.NoError(t, err)

	require.NoError(t, s.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"", "resp_x"}, prevIDs)
	assert.Equal(t, []string{"you are GPT-1", "you are GPT-1"}, instr)
	assert.ElementsMatch(t, []string{"resp_x", "resp_xx"}, deleted)
}

func TestAnthropicChat(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "ak", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"content":[{"type":"text","text":"VOTE: GPT-1"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient(Config{APIKey: "ak", BaseURL: srv.URL})
	out, err := c.Chat(context.Background(), []Message{
		{Role: RoleSystem, Content: "rules"},
		{Role: RoleUser, Content: "vote"},
	})
	require.NoError(t, err)
	assert.Equal(t, "VOTE: GPT-1", out)
	assert.Equal(t, "rules", got.System)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, RoleUser, got.Messages[0].Role)
}

func TestAnthropicIsNotStateful(t *testing.T) {
	var c Client = NewAnthropicClient(Config{APIKey: "k"})
	_, ok := c.(StatefulClient)
	assert.False(t, ok)

	c = NewGroqClient(Config{APIKey: "k"})
	_, ok = c.(StatefulClient)
	assert.False(t, ok)

	c = NewOpenAIClient(Config{APIKey: "k"})
	_, ok = c.(StatefulClient)
	assert.True(t, ok)
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(context.Background(), Config{Provider: ProviderOpenAI})
	assert.Error(t, err)

	_, err = New(context.Background(), Config{Provider: "mystery", APIKey: "k"})
	assert.Error(t, err)
}

func TestSplitSystem(t *testing.T) {
	sys, rest := SplitSystem([]Message{
		{Role: RoleSystem, Content: "a"},
		{Role: RoleUser, Content: "q"},
		{Role: RoleSystem, Content: "b"},
	})
	assert.Equal(t, "a\n\nb", sys)
	assert.Equal(t, []Message{{Role: RoleUser, Content: "q"}}, rest)
}

func TestProviderLabel(t *testing.T) {
	assert.Equal(t, "GPT", ProviderOpenAI.Label())
	assert.Equal(t, "Claude", ProviderAnthropic.Label())
	assert.Equal(t, "Gemini", ProviderGemini.Label())
	assert.Equal(t, "Llama", ProviderGroq.Label())
}
