package main

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"personabot/pkg/cache"
	"personabot/pkg/chat"
	"personabot/pkg/config"
	"personabot/pkg/gemini"
	"personabot/pkg/llm"
	"personabot/pkg/logging"
	"personabot/pkg/memory"
	"personabot/pkg/openaicompat"
	"personabot/pkg/surreal"
)

// app carries the loaded configuration and the resources opened from it.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	closers []func()
}

// loadApp reads .env and the config file and builds the base logger.
func loadApp(configPath, envPath string) (*app, error) {
	// .env is optional; secrets may already be in the environment.
	envErr := godotenv.Load(envPath)

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	logger := logging.New(cfg.LogLevel)
	if envErr != nil {
		logger.Debug("no .env file loaded, relying on environment variables", "path", envPath)
	}
	return &app{cfg: cfg, logger: logger}, nil
}

func (a *app) onClose(fn func()) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// openBackend connects the configured storage driver, wrapped in the Redis
// cache when enabled.
func (a *app) openBackend(ctx context.Context) (memory.Backend, error) {
	logger := a.logger.WithPrefix("store")

	var backend memory.Backend
	switch a.cfg.Storage.Driver {
	case config.DriverSQLite:
		store, err := memory.NewSQLStore(memory.DriverSQLite, a.cfg.Storage.Path, logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing store", "error", err)
			}
		})
		backend = store
	case config.DriverPostgres:
		store, err := memory.NewSQLStore(memory.DriverPostgres, a.cfg.Secrets.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		a.onClose(func() {
			if err := store.Close(); err != nil {
				logger.Warn("closing store", "error", err)
			}
		})
		backend = store
	case config.DriverSurreal:
		secrets := a.cfg.Secrets
		client, err := surreal.NewClient(ctx, surreal.Config{
			Host:      secrets.SurrealHost,
			User:      secrets.SurrealUser,
			Pass:      secrets.SurrealPass,
			Namespace: secrets.SurrealNS,
			Database:  secrets.SurrealDatabase,
		})
		if err != nil {
			return nil, err
		}
		a.onClose(client.Close)
		store, err := memory.NewSurrealStore(ctx, client, logger)
		if err != nil {
			return nil, err
		}
		backend = store
	default:
		return nil, errors.Errorf("unknown storage driver %q", a.cfg.Storage.Driver)
	}
	logger.Info("storage ready", "driver", a.cfg.Storage.Driver)

	if !a.cfg.Cache.Enabled {
		return backend, nil
	}

	c, err := cache.NewRedisCache(ctx, a.cfg.Secrets.RedisURL, a.cfg.Cache.Prefix)
	if err != nil {
		return nil, err
	}
	a.onClose(func() {
		if err := c.Close(); err != nil {
			logger.Warn("closing cache", "error", err)
		}
	})
	ttl := time.Duration(a.cfg.Cache.TTLMinutes) * time.Minute
	logger.Info("redis cache enabled", "ttl", ttl)
	return memory.NewCachedStore(backend, c, ttl, a.logger.WithPrefix("cache")), nil
}

// newCompleter builds the client for the configured model provider.
func (a *app) newCompleter(ctx context.Context) (llm.Completer, error) {
	settings := a.cfg.ModelSettings
	logger := a.logger.WithPrefix(settings.Provider)

	switch settings.Provider {
	case config.ProviderGemini:
		client, err := gemini.NewClient(ctx, gemini.Config{
			APIKey:  a.cfg.Secrets.GeminiAPIKey,
			Model:   settings.Model,
			BaseURL: settings.BaseURL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	case config.ProviderOpenAI:
		client, err := openaicompat.NewClient(openaicompat.Config{
			BaseURL: settings.BaseURL,
			APIKeys: a.cfg.Secrets.OpenAIAPIKeys,
			Models:  a.cfg.Models(),
		}, logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	default:
		return nil, errors.Errorf("unknown model provider %q", settings.Provider)
	}
}

func (a *app) newChatService(store memory.Store, completer llm.Completer) *chat.Service {
	return chat.NewService(store, completer, chat.Options{
		Reply: llm.Options{
			Temperature:     a.cfg.ModelSettings.Temperature,
			MaxOutputTokens: a.cfg.ModelSettings.MaxOutputTokens,
		},
		Analysis: llm.Options{
			Temperature:     a.cfg.Analysis.Temperature,
			MaxOutputTokens: a.cfg.Analysis.MaxOutputTokens,
		},
	}, a.logger.WithPrefix("chat"))
}
