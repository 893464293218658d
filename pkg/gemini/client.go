package gemini

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"google.golang.org/genai"

	"personabot/pkg/llm"
	"personabot/pkg/logging"
)

const DefaultModel = "gemini-2.0-flash"

type Config struct {
	APIKey string
	Model  string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
}

// Client generates text with the Gemini API.
type Client struct {
	client *genai.Client
	model  string
	logger *log.Logger
}

func NewClient(ctx context.Context, cfg Config, logger *log.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is empty")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}

	return &Client{
		client: client,
		model:  cfg.Model,
		logger: logging.OrDiscard(logger),
	}, nil
}

func (c *Client) Model() string {
	return c.model
}

// Generate sends prompt as a single user turn. An empty reply is not an
// error; callers decide what blank text means.
func (c *Client) Generate(ctx context.Context, prompt string, opts llm.Options) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(opts.Temperature)),
	}
	if opts.MaxOutputTokens > 0 {
		config.MaxOutputTokens = int32(opts.MaxOutputTokens)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", errors.Wrapf(err, "gemini %s generate", c.model)
	}

	text := resp.Text()
	c.logger.Debug("gemini completion", "model", c.model, "chars", len(text))
	return text, nil
}
