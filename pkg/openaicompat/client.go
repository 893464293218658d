package openaicompat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/pkg/errors"

	"personabot/pkg/llm"
	"personabot/pkg/logging"
)

const DefaultBaseURL = "https://api.openai.com/v1"

var ErrNoKeys = errors.New("no API keys configured")

type Config struct {
	BaseURL string
	// APIKeys is a comma-separated list; keys are rotated by failure count.
	APIKeys string
	// Models are tried in order until one answers.
	Models []string
}

type keyState struct {
	Key          string
	FailureCount int
	LastUsed     time.Time
	LastSuccess  time.Time
}

// Client talks to any OpenAI-compatible chat completions endpoint.
type Client struct {
	baseURL   string
	keys      []*keyState
	keyMu     sync.RWMutex
	clients   map[string]*openai.Client
	clientsMu sync.RWMutex
	models    []string
	logger    *log.Logger
}

func NewClient(cfg Config, logger *log.Logger) (*Client, error) {
	logger = logging.OrDiscard(logger)
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}

	var keys []*keyState
	for _, k := range strings.Split(cfg.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, &keyState{Key: k})
		}
	}
	if len(keys) == 0 {
		return nil, ErrNoKeys
	}

	var models []string
	for _, m := range cfg.Models {
		if m = strings.TrimSpace(m); m != "" {
			models = append(models, m)
		}
	}
	if len(models) == 0 {
		return nil, errors.New("no models configured")
	}

	logger.Info("loaded completion keys", "count", len(keys), "models", strings.Join(models, ","))

	return &Client{
		baseURL: cfg.BaseURL,
		keys:    keys,
		clients: make(map[string]*openai.Client),
		models:  models,
		logger:  logger,
	}, nil
}

func (c *Client) getClient(key string) *openai.Client {
	c.clientsMu.RLock()
	if client, ok := c.clients[key]; ok {
		c.clientsMu.RUnlock()
		return client
	}
	c.clientsMu.RUnlock()

	c.clientsMu.Lock()
	defer c.clientsMu.Unlock()
	if client, ok := c.clients[key]; ok {
		return client
	}

	// Retries are handled here by rotating keys and models.
	client := openai.NewClient(
		option.WithBaseURL(c.baseURL),
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
	)
	c.clients[key] = &client
	return &client
}

func (c *Client) getBestKey() *keyState {
	c.keyMu.RLock()
	defer c.keyMu.RUnlock()

	best := c.keys[0]
	for _, k := range c.keys[1:] {
		if k.FailureCount < best.FailureCount {
			best = k
		}
	}
	return best
}

func (c *Client) recordSuccess(key *keyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.LastSuccess = time.Now()
	key.LastUsed = time.Now()
	if key.FailureCount > 0 {
		key.FailureCount--
	}
}

func (c *Client) recordFailure(key *keyState) {
	c.keyMu.Lock()
	defer c.keyMu.Unlock()
	key.FailureCount++
	key.LastUsed = time.Now()
}

// Generate sends prompt as a single user message. Models are tried in order;
// a rate-limited or rejected key is swapped for the healthiest other key
// before moving on to the next model.
func (c *Client) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	var lastErr error

	for _, model := range c.models {
		params := openai.ChatCompletionNewParams{
			Model:       shared.ChatModel(model),
			Messages:    []openai.ChatCompletionMessageParamUnion{openai.UserMessage(prompt)},
			Temperature: openai.Float(opts.Temperature),
		}
		if opts.MaxOutputTokens > 0 {
			params.MaxTokens = openai.Int(int64(opts.MaxOutputTokens))
		}

		key := c.getBestKey()
		start := time.Now()
		resp, err := c.getClient(key.Key).Chat.Completions.New(ctx, params)

		if err != nil && isRateLimitOrAuthError(err) {
			c.recordFailure(key)
			if next := c.getBestKey(); next != key {
				c.logger.Warn("key rate limited or rejected, trying another key", "model", model)
				key = next
				resp, err = c.getClient(key.Key).Chat.Completions.New(ctx, params)
				if err != nil && isRateLimitOrAuthError(err) {
					c.recordFailure(key)
				}
			}
		}

		if err != nil {
			c.logger.Warn("completion model failed", "model", model, "error", err)
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if resp == nil || len(resp.Choices) == 0 {
			c.logger.Warn("completion model returned no choices", "model", model)
			lastErr = errors.Errorf("empty response from model %s", model)
			continue
		}

		c.recordSuccess(key)
		c.logger.Debug("completion model success",
			"model", model,
			"took", time.Since(start),
			"tokens_in", resp.Usage.PromptTokens,
			"tokens_out", resp.Usage.CompletionTokens,
		)
		return resp.Choices[0].Message.Content, nil
	}

	return "", errors.Wrap(lastErr, "all completion models exhausted")
}

func isRateLimitOrAuthError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 401, 403, 429:
			return true
		}
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "401") ||
		strings.Contains(errStr, "403") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "unauthorized")
}
