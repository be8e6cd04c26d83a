package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/spyfall-agents/internal/config"
	"github.com/tatianab/spyfall-agents/internal/models"
)

func clearKeys(t *testing.T) {
	for _, env := range []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GROQ_API_KEY",
		"SPYFALL_ANALYTICS", "SPYFALL_DATA_DIR", "SPYFALL_LOCATIONS_DIR", "SPYFALL_LOG_LEVEL"} {
		t.Setenv(env, "")
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func fakeModel(t *testing.T) *httptest.Server {
	t.Helper()
	reply := "TARGET: anyone\nQUESTION: How busy is it today?\nANSWER: Very.\nGUESS: Casino\nVOTE: nobody\nDECISION: no\nREACTION: hm"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{{"message": map[string]string{"role": "assistant", "content": reply}}},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func writeConfig(t *testing.T, dir, modelURL string) string {
	t.Helper()
	path := filepath.Join(dir, "spyfall.yaml")
	content := fmt.Sprintf(`data_dir: %s
analytics: file
log_level: error
providers:
  openai:
    api_key: test
    base_url: %s
game:
  rounds: 2
  reactions: never
  location: Casino
  players: 3
`, filepath.Join(dir, "games"), modelURL)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPlayAndHistory(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	path := writeConfig(t, dir, fakeModel(t).URL)

	out, err := execute(t, "play", "--config", path, "--plain", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Winner:")
	assert.Contains(t, out, "Location: Casino")

	out, err = execute(t, "history", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "LOCATION")
	assert.Contains(t, out, "Casino")

	ids, err := models.ListRecords(filepath.Join(dir, "games"))
	require.NoError(t, err)
	require.Len(t, ids, 1)

	out, err = execute(t, "history", "show", ids[0], "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "location: Casino")
	assert.Contains(t, out, "turns:")
}

func TestPlayNeedsKeys(t *testing.T) {
	clearKeys(t)
	t.Chdir(t.TempDir())
	_, err := execute(t, "play", "--plain", "--players", "3")
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestLocations(t *testing.T) {
	clearKeys(t)
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, "locations")
	require.NoError(t, err)
	assert.Contains(t, out, "Casino")

	good := filepath.Join(dir, "good.yaml")
	require.NoError(t, os.WriteFile(good, []byte("location: Moon Base\nroles: [Pilot, Botanist, Engineer]\n"), 0644))
	out, err = execute(t, "locations", "validate", good)
	require.NoError(t, err)
	assert.Contains(t, out, "1 pack(s) ok")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("location: Moon Base\nroles: [Pilot, Pilot]\n"), 0644))
	_, err = execute(t, "locations", "validate", bad)
	assert.Error(t, err)
}

func TestApplyFlags(t *testing.T) {
	parse := func(args ...string) (*cobra.Command, *playFlags) {
		cmd := &cobra.Command{}
		f := &playFlags{}
		f.register(cmd.Flags())
		require.NoError(t, cmd.ParseFlags(args))
		return cmd, f
	}

	base := models.GameConfig{
		Slots:  []models.Slot{models.HumanSlot, models.AISlot("anthropic", ""), models.AISlot("gemini", "")},
		Rounds: 8,
	}.WithDefaults()

	cmd, f := parse("--rounds", "3", "--reactions", "rare", "--location", "Bank")
	game := applyFlags(cmd, f, base)
	assert.Equal(t, 3, game.Rounds)
	assert.Equal(t, models.ReactRare, game.Reactions)
	assert.Equal(t, "Bank", game.Location)
	assert.Len(t, game.Slots, 3, "slots survive when no seat flag is set")

	cmd, f = parse("--players", "5")
	game = applyFlags(cmd, f, base)
	assert.Empty(t, game.Slots)
	assert.Equal(t, 5, game.Players)
	assert.True(t, game.IncludeHuman, "the human seat carries over")
	assert.Len(t, game.ResolveSlots(), 5)

	cmd, f = parse("--human=false", "--provider", "groq")
	game = applyFlags(cmd, f, base)
	slots := game.ResolveSlots()
	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Equal(t, models.AISlot("groq", models.ModeMemory), s)
	}
}
