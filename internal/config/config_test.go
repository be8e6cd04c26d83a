package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/models"
)

func clearEnv(t *testing.T) {
	for _, env := range apiKeyEnv {
		t.Setenv(env, "")
	}
	for _, env := range []string{"SPYFALL_ADDR", "SPYFALL_DATA_DIR", "SPYFALL_LOG_LEVEL", "SPYFALL_ANALYTICS", "SPYFALL_DATABASE_URL", "SPYFALL_PROVIDER_TIMEOUT"} {
		t.Setenv(env, "")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, llm.DefaultTimeout, cfg.ProviderTimeout)
	assert.Equal(t, models.DefaultRounds, cfg.Game.Rounds)
	assert.Equal(t, models.ReactSometimes, cfg.Game.Reactions)
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)

	path := filepath.Join(dir, "spyfall.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
provider_timeout: 30s
providers:
  openai:
    api_key: from-file
    model: gpt-test
game:
  rounds: 3
  slots: [human, anthropic, openai/stateful]
`), 0644))
	t.Setenv("ANTHROPIC_API_KEY", "from-env")
	t.Setenv("SPYFALL_ADDR", ":7000")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, 30*time.Second, cfg.ProviderTimeout)
	assert.Equal(t, 3, cfg.Game.Rounds)
	require.Len(t, cfg.Game.Slots, 3)

	oa := cfg.LLM(llm.ProviderOpenAI)
	assert.Equal(t, "from-file", oa.APIKey)
	assert.Equal(t, "gpt-test", oa.Model)
	assert.Equal(t, 30*time.Second, oa.Timeout)
	assert.Equal(t, "from-env", cfg.LLM(llm.ProviderAnthropic).APIKey)

	assert.NoError(t, cfg.CheckKeys(cfg.Game))
}

func TestLoadConfigDotEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	t.Chdir(dir)
	// godotenv never overrides a variable that is set, even to ""
	require.NoError(t, os.Unsetenv("GROQ_API_KEY"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GROQ_API_KEY=dotenv-key\n"), 0644))

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "dotenv-key", cfg.LLM(llm.ProviderGroq).APIKey)
}

func TestCheckKeys(t *testing.T) {
	cfg := Default()
	game := models.GameConfig{Slots: []models.Slot{models.HumanSlot, models.AISlot("gemini", ""), models.AISlot("gemini", "")}}

	err := cfg.CheckKeys(game)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")

	cfg.Providers["gemini"] = Provider{APIKey: "k"}
	assert.NoError(t, cfg.CheckKeys(game))
}

func TestBadTimeout(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())
	t.Setenv("SPYFALL_PROVIDER_TIMEOUT", "soon")
	_, err := LoadConfig("")
	assert.Error(t, err)
}
