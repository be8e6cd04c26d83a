package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tatianab/spyfall-agents/internal/llm"
	"github.com/tatianab/spyfall-agents/internal/models"
)

var ErrMissingAPIKey = errors.New("missing API key")

// Provider holds the settings for one model provider.
type Provider struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model,omitempty"`
	BaseURL string `yaml:"base_url,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	Addr            string              `yaml:"addr"`
	DataDir         string              `yaml:"data_dir"`
	LogLevel        string              `yaml:"log_level"`
	LogFormat       string              `yaml:"log_format"`
	Analytics       string              `yaml:"analytics"`
	DatabaseURL     string              `yaml:"database_url,omitempty"`
	LocationsDir    string              `yaml:"locations_dir,omitempty"`
	ProviderTimeout time.Duration       `yaml:"provider_timeout"`
	Providers       map[string]Provider `yaml:"providers,omitempty"`
	Game            models.GameConfig   `yaml:"game"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Addr:            ":8080",
		DataDir:         models.DefaultSaveDir,
		LogLevel:        "info",
		LogFormat:       "console",
		Analytics:       "file",
		ProviderTimeout: llm.DefaultTimeout,
		Providers:       map[string]Provider{},
		Game:            models.GameConfig{}.WithDefaults(),
	}
}

var apiKeyEnv = map[llm.Provider]string{
	llm.ProviderOpenAI:    "OPENAI_API_KEY",
	llm.ProviderAnthropic: "ANTHROPIC_API_KEY",
	llm.ProviderGemini:    "GEMINI_API_KEY",
	llm.ProviderGroq:      "GROQ_API_KEY",
}

// LoadConfig loads .env, then the YAML file at path (if any), then environment overrides.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if cfg.Providers == nil {
			cfg.Providers = map[string]Provider{}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Game = cfg.Game.WithDefaults()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	for provider, env := range apiKeyEnv {
		if key := os.Getenv(env); key != "" {
			p := c.Providers[string(provider)]
			p.APIKey = key
			c.Providers[string(provider)] = p
		}
	}
	setString(&c.Addr, "SPYFALL_ADDR")
	setString(&c.DataDir, "SPYFALL_DATA_DIR")
	setString(&c.LogLevel, "SPYFALL_LOG_LEVEL")
	setString(&c.LogFormat, "SPYFALL_LOG_FORMAT")
	setString(&c.Analytics, "SPYFALL_ANALYTICS")
	setString(&c.DatabaseURL, "SPYFALL_DATABASE_URL")
	setString(&c.LocationsDir, "SPYFALL_LOCATIONS_DIR")
	if v := os.Getenv("SPYFALL_PROVIDER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("SPYFALL_PROVIDER_TIMEOUT: %w", err)
		}
		c.ProviderTimeout = d
	}
	return nil
}

func setString(dst *string, env string) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		*dst = v
	}
}

// LLM returns the client settings for a provider.
func (c *Config) LLM(p llm.Provider) llm.Config {
	s := c.Providers[string(p)]
	return llm.Config{
		Provider: p,
		APIKey:   s.APIKey,
		Model:    s.Model,
		BaseURL:  s.BaseURL,
		Timeout:  c.ProviderTimeout,
	}
}

// CheckKeys reports every AI seat whose provider has no API key.
func (c *Config) CheckKeys(game models.GameConfig) error {
	var missing []string
	seen := map[string]bool{}
	for _, s := range game.ResolveSlots() {
		if s.Human || seen[s.Provider] {
			continue
		}
		seen[s.Provider] = true
		if c.Providers[s.Provider].APIKey == "" {
			env := apiKeyEnv[llm.Provider(s.Provider)]
			if env == "" {
				env = "an API key"
			}
			missing = append(missing, fmt.Sprintf("%s (set %s)", s.Provider, env))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for %s", ErrMissingAPIKey, strings.Join(missing, ", "))
	}
	return nil
}
