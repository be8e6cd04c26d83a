package server

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/models"
	"github.com/tatianab/spyfall-agents/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// modelReply carries every labeled field the prompts ask for.
const modelReply = `TARGET: nobody in particular
QUESTION: What do you see around you?
ANSWER: Lots of people having fun.
THOUGHT: keep it vague
ACTION: question
GUESS: Casino
REASON: hunch
VOTE: nobody
ACCUSE: nobody
DEFENSE: not me
DECISION: no
REACTION: interesting`

func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": modelReply}}},
		})
	}))
}

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	model := fakeModel(t)
	s := New(Options{
		Settings: func(p llm.Provider) llm.Config {
			return llm.Config{APIKey: "test", BaseURL: model.URL, Timeout: 5 * time.Second}
		},
		Logger: zaptest.NewLogger(t),
	})
	ts := httptest.NewServer(s.RegisterRoutes())
	t.Cleanup(model.Close)
	t.Cleanup(ts.Close)
	t.Cleanup(s.Close)
	return s, ts
}

func aiConfig(rounds int) string {
	return fmt.Sprintf(`{"rounds": %d, "location": "Casino", "reactions": "never",
		"slots": [{"provider": "openai"}, {"provider": "openai"}, {"provider": "openai"}]}`, rounds)
}

func createGame(t *testing.T, ts *httptest.Server, body string) string {
	t.Helper()
	resp, err := ts.Client().Post(ts.URL+"/api/games", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out createResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotEmpty(t, out.ID)
	return out.ID
}

func getGame(t *testing.T, ts *httptest.Server, id string) (gameResponse, int) {
	t.Helper()
	resp, err := ts.Client().Get(ts.URL + "/api/games/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out gameResponse
	if resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	}
	return out, resp.StatusCode
}

func postInput(t *testing.T, ts *httptest.Server, id, text string) int {
	t.Helper()
	body, _ := json.Marshal(inputRequest{Text: text})
	resp, err := ts.Client().Post(ts.URL+"/api/games/"+id+"/input", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

// readEvents reads an SSE stream to its end and returns the event names in order.
func readEvents(t *testing.T, r io.Reader) []string {
	t.Helper()
	var names []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 1024*1024), 1024*1024)
	for sc.Scan() {
		if name, ok := strings.CutPrefix(sc.Text(), "event: "); ok {
			names = append(names, name)
		}
	}
	return names
}

func TestAIGameStreamsToCompletion(t *testing.T) {
	_, ts := newTestServer(t)
	id := createGame(t, ts, aiConfig(2))

	resp, err := ts.Client().Get(ts.URL + "/api/games/" + id + "/events")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	names := readEvents(t, resp.Body)
	assert.Contains(t, names, EventPlayers)
	assert.Contains(t, names, "turn")
	assert.Contains(t, names, "vote")
	assert.Contains(t, names, "game_over")
	assert.Equal(t, EventStatus, names[len(names)-1])
	assert.NotContains(t, names, EventSecret, "no human seat")
	assert.NotContains(t, names, EventPrompt)

	game, status := getGame(t, ts, id)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, store.StatusFinished, game.Status)
	assert.Len(t, game.Transcript, 2)
	require.NotNil(t, game.Result)
	assert.Equal(t, "Casino", game.Location)
	require.Len(t, game.Players, 3)
	for _, p := range game.Players {
		assert.NotNil(t, p.Secret, "secrets are revealed after game over")
	}

	// A late subscriber still gets the whole game.
	resp2, err := ts.Client().Get(ts.URL + "/api/games/" + id + "/events")
	require.NoError(t, err)
	defer resp2.Body.Close()
	assert.Equal(t, names, readEvents(t, resp2.Body))
}

func TestHumanGameTakesWebInput(t *testing.T) {
	_, ts := newTestServer(t)
	id := createGame(t, ts, `{"rounds": 2, "location": "Casino", "reactions": "never",
		"slots": ["human", {"provider": "openai"}]}`)

	deadline := time.Now().Add(20 * time.Second)
	answered := 0
	for {
		require.True(t, time.Now().Before(deadline), "game did not finish")
		game, status := getGame(t, ts, id)
		require.Equal(t, http.StatusOK, status)
		if game.Status != store.StatusRunning {
			assert.Equal(t, store.StatusFinished, game.Status)
			assert.Len(t, game.Transcript, 2)
			break
		}
		if game.PendingInput != "" {
			if postInput(t, ts, id, "Casino") == http.StatusNoContent {
				answered++
			}
			continue
		}
		time.Sleep(10 * time.Millisecond)
	}
	assert.Positive(t, answered)
}

func TestInputWithoutPendingPrompt(t *testing.T) {
	_, ts := newTestServer(t)
	id := createGame(t, ts, aiConfig(1))
	assert.Equal(t, http.StatusConflict, postInput(t, ts, id, "hello"))
	assert.Equal(t, http.StatusNotFound, postInput(t, ts, "missing", "hello"))
}

func TestDeleteCancelsGame(t *testing.T) {
	s, ts := newTestServer(t)
	id := createGame(t, ts, `{"rounds": 2, "slots": ["human", {"provider": "openai"}]}`)
	g, err := s.store.Get(id)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/games/"+id, nil)
	require.NoError(t, err)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, status := getGame(t, ts, id)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Eventually(t, func() bool { return g.Status() == store.StatusCancelled }, 5*time.Second, 10*time.Millisecond)
}

func TestWebSocketStream(t *testing.T) {
	_, ts := newTestServer(t)
	id := createGame(t, ts, aiConfig(1))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/games/" + id + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var names []string
	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "unexpected error: %v", err)
			break
		}
		names = append(names, msg.Event)
	}
	assert.Contains(t, names, "turn")
	assert.Contains(t, names, "game_over")
}

func TestBadRequests(t *testing.T) {
	_, ts := newTestServer(t)
	c := ts.Client()

	for name, body := range map[string]string{
		"malformed":        `{"rounds":`,
		"too few players":  `{"slots": [{"provider": "openai"}]}`,
		"unknown location": `{"location": "Moon Base", "slots": [{"provider": "openai"}, {"provider": "openai"}]}`,
		"bad reactions":    `{"reactions": "often", "slots": [{"provider": "openai"}, {"provider": "openai"}]}`,
	} {
		resp, err := c.Post(ts.URL+"/api/games", "application/json", strings.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, name)
	}

	_, status := getGame(t, ts, "missing")
	assert.Equal(t, http.StatusNotFound, status)

	resp, err := c.Get(ts.URL + "/api/games/missing/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestMetaRoutes(t *testing.T) {
	_, ts := newTestServer(t)
	c := ts.Client()

	resp, err := c.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	resp, err = c.Get(ts.URL + "/api/locations")
	require.NoError(t, err)
	var packs []models.LocationPack
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&packs))
	resp.Body.Close()
	assert.NotEmpty(t, packs)

	resp, err = c.Get(ts.URL + "/api/history")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	req, err := http.NewRequest(http.MethodOptions, ts.URL+"/api/games", nil)
	require.NoError(t, err)
	resp, err = c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}
