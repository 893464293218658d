package memory

import (
	"context"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"personabot/pkg/cache"
	"personabot/pkg/logging"
	"personabot/pkg/persona"
)

// CachedStore fronts a Backend with Redis. Recent-conversation lookups and
// the template catalogue are cached; writes invalidate. Cache failures are
// logged and fall through to the backend.
type CachedStore struct {
	Backend
	cache  *cache.Cache
	ttl    time.Duration
	logger *log.Logger
}

func NewCachedStore(backend Backend, c *cache.Cache, ttl time.Duration, logger *log.Logger) *CachedStore {
	if ttl <= 0 {
		ttl = cache.RecentConversationsTTL
	}
	return &CachedStore{
		Backend: backend,
		cache:   c,
		ttl:     ttl,
		logger:  logging.OrDiscard(logger),
	}
}

func (c *CachedStore) recentKey(personaName, ownerID string) string {
	if ownerID == "" {
		ownerID = "_"
	}
	return c.cache.Key("recent_conversations", personaName, ownerID)
}

func (c *CachedStore) GetRecentConversations(ctx context.Context, personaName, ownerID string, limit int) ([]Conversation, error) {
	key := c.recentKey(personaName, ownerID)
	field := strconv.Itoa(limit)

	var conversations []Conversation
	if err := c.cache.HGetJSON(ctx, key, field, &conversations); err == nil {
		return conversations, nil
	} else if !errors.Is(err, cache.ErrMiss) {
		c.logger.Debug("recent conversations cache read failed", "key", key, "error", err)
	}

	conversations, err := c.Backend.GetRecentConversations(ctx, personaName, ownerID, limit)
	if err != nil {
		return nil, err
	}

	if err := c.cache.HSetJSON(ctx, key, field, conversations, c.ttl); err != nil {
		c.logger.Debug("recent conversations cache write failed", "key", key, "error", err)
	}
	return conversations, nil
}

func (c *CachedStore) SaveConversation(ctx context.Context, personaName, ownerID string, messages []Message) (string, error) {
	id, err := c.Backend.SaveConversation(ctx, personaName, ownerID, messages)
	if err != nil {
		return "", err
	}

	key := c.recentKey(personaName, ownerID)
	if err := c.cache.Delete(ctx, key); err != nil {
		c.logger.Warn("failed to invalidate recent conversations", "key", key, "error", err)
	}
	return id, nil
}

func (c *CachedStore) ListTemplates(ctx context.Context) ([]persona.Template, error) {
	key := c.cache.Key("templates")

	var templates []persona.Template
	if err := c.cache.GetJSON(ctx, key, &templates); err == nil && len(templates) > 0 {
		return templates, nil
	}

	templates, err := c.Backend.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	if len(templates) > 0 {
		if err := c.cache.SetJSON(ctx, key, templates, cache.TemplatesTTL); err != nil {
			c.logger.Debug("templates cache write failed", "error", err)
		}
	}
	return templates, nil
}
