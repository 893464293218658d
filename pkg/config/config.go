package config

import (
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"

	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverSurreal  = "surreal"
)

// ErrMissingCredential is returned by Validate when a secret required by the
// selected provider or backend is not set.
var ErrMissingCredential = errors.New("missing required credential")

type ModelSettings struct {
	Provider        string   `yaml:"provider" env:"PERSONABOT_PROVIDER"`
	Model           string   `yaml:"model" env:"PERSONABOT_MODEL"`
	FallbackModels  []string `yaml:"fallback_models" env:"PERSONABOT_FALLBACK_MODELS" envSeparator:","`
	BaseURL         string   `yaml:"base_url" env:"PERSONABOT_BASE_URL"`
	Temperature     float64  `yaml:"temperature" env:"PERSONABOT_TEMPERATURE"`
	MaxOutputTokens int      `yaml:"max_output_tokens" env:"PERSONABOT_MAX_OUTPUT_TOKENS"`
}

// AnalysisSettings tune the learning and refinement completions.
type AnalysisSettings struct {
	Temperature     float64 `yaml:"temperature" env:"PERSONABOT_ANALYSIS_TEMPERATURE"`
	MaxOutputTokens int     `yaml:"max_output_tokens" env:"PERSONABOT_ANALYSIS_MAX_OUTPUT_TOKENS"`
}

type StorageSettings struct {
	Driver string `yaml:"driver" env:"PERSONABOT_STORAGE_DRIVER"`
	// Path is the SQLite database file.
	Path string `yaml:"path" env:"PERSONABOT_STORAGE_PATH"`
}

type CacheSettings struct {
	Enabled    bool   `yaml:"enabled" env:"PERSONABOT_CACHE_ENABLED"`
	Prefix     string `yaml:"prefix" env:"PERSONABOT_CACHE_PREFIX"`
	TTLMinutes int    `yaml:"ttl_minutes" env:"PERSONABOT_CACHE_TTL_MINUTES"`
}

type BotSettings struct {
	SessionIdleMinutes int `yaml:"session_idle_minutes" env:"PERSONABOT_SESSION_IDLE_MINUTES"`
	// LearningSweepHours of 0 disables the periodic learning sweep.
	LearningSweepHours float64 `yaml:"learning_sweep_hours" env:"PERSONABOT_LEARNING_SWEEP_HOURS"`
}

// Secrets only ever come from the environment.
type Secrets struct {
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	OpenAIAPIKeys   string `env:"OPENAI_API_KEY"`
	DiscordToken    string `env:"DISCORD_TOKEN"`
	DiscordGuildID  string `env:"DISCORD_GUILD_ID"`
	DatabaseURL     string `env:"DATABASE_URL"`
	RedisURL        string `env:"REDIS_URL"`
	SurrealHost     string `env:"SURREAL_DB_HOST"`
	SurrealUser     string `env:"SURREAL_DB_USER"`
	SurrealPass     string `env:"SURREAL_DB_PASS"`
	SurrealNS       string `env:"SURREAL_DB_NAMESPACE" envDefault:"personabot"`
	SurrealDatabase string `env:"SURREAL_DB_DATABASE" envDefault:"personas"`
}

type Config struct {
	ModelSettings ModelSettings    `yaml:"model_settings"`
	Analysis      AnalysisSettings `yaml:"analysis"`
	Storage       StorageSettings  `yaml:"storage"`
	Cache         CacheSettings    `yaml:"cache"`
	Bot           BotSettings      `yaml:"bot"`
	LogLevel      string           `yaml:"log_level" env:"PERSONABOT_LOG_LEVEL"`
	Secrets       Secrets          `yaml:"-"`
}

func defaults() *Config {
	config := &Config{}
	config.ModelSettings.Provider = ProviderGemini
	config.ModelSettings.Model = "gemini-2.0-flash"
	config.ModelSettings.Temperature = 0.8
	config.ModelSettings.MaxOutputTokens = 1000
	config.Analysis.Temperature = 0.4
	config.Analysis.MaxOutputTokens = 2048
	config.Storage.Driver = DriverSQLite
	config.Storage.Path = "data/personabot.db"
	config.Cache.Prefix = "personabot"
	config.Cache.TTLMinutes = 30
	config.Bot.SessionIdleMinutes = 15
	config.LogLevel = "info"
	return config
}

// LoadConfig reads path over the defaults, then applies environment
// overrides. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	config := defaults()

	file, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrapf(err, "read %s", path)
	default:
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, errors.Wrapf(err, "parse %s", path)
		}
	}

	if err := env.Parse(config); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}

	config.ModelSettings.Provider = strings.ToLower(strings.TrimSpace(config.ModelSettings.Provider))
	config.Storage.Driver = strings.ToLower(strings.TrimSpace(config.Storage.Driver))
	return config, nil
}

// Validate checks that every credential needed by the configured provider,
// storage driver and cache is present.
func (c *Config) Validate() error {
	switch c.ModelSettings.Provider {
	case ProviderGemini:
		if c.Secrets.GeminiAPIKey == "" {
			return missing("GEMINI_API_KEY")
		}
	case ProviderOpenAI:
		if c.Secrets.OpenAIAPIKeys == "" {
			return missing("OPENAI_API_KEY")
		}
	default:
		return errors.Errorf("unknown model provider %q", c.ModelSettings.Provider)
	}
	return c.ValidateStorage()
}

// ValidateStorage checks the storage driver and cache settings only.
func (c *Config) ValidateStorage() error {
	switch c.Storage.Driver {
	case DriverSQLite:
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Secrets.DatabaseURL == "" {
			return missing("DATABASE_URL")
		}
	case DriverSurreal:
		switch {
		case c.Secrets.SurrealHost == "":
			return missing("SURREAL_DB_HOST")
		case c.Secrets.SurrealUser == "":
			return missing("SURREAL_DB_USER")
		case c.Secrets.SurrealPass == "":
			return missing("SURREAL_DB_PASS")
		}
	default:
		return errors.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	if c.Cache.Enabled && c.Secrets.RedisURL == "" {
		return missing("REDIS_URL")
	}
	return nil
}

// ValidateDiscord additionally requires the bot token.
func (c *Config) ValidateDiscord() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.Secrets.DiscordToken == "" {
		return missing("DISCORD_TOKEN")
	}
	return nil
}

// Models returns the primary model followed by the fallbacks.
func (c *Config) Models() []string {
	models := []string{c.ModelSettings.Model}
	for _, m := range c.ModelSettings.FallbackModels {
		if m = strings.TrimSpace(m); m != "" && m != c.ModelSettings.Model {
			models = append(models, m)
		}
	}
	return models
}

func missing(name string) error {
	return errors.Wrap(ErrMissingCredential, name)
}
