package memory

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personabot/pkg/cache"
	"personabot/pkg/persona"
)

type countingBackend struct {
	*SQLStore
	recentCalls    int
	templatesCalls int
}

func (c *countingBackend) GetRecentConversations(ctx context.Context, personaName, ownerID string, limit int) ([]Conversation, error) {
	c.recentCalls++
	return c.SQLStore.GetRecentConversations(ctx, personaName, ownerID, limit)
}

func (c *countingBackend) ListTemplates(ctx context.Context) ([]persona.Template, error) {
	c.templatesCalls++
	return c.SQLStore.ListTemplates(ctx)
}

func newCachedTestStore(t *testing.T) (*CachedStore, *countingBackend, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c := cache.NewFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { _ = c.Close() })

	backend := &countingBackend{SQLStore: newSQLiteStore(t)}
	return NewCachedStore(backend, c, time.Minute, nil), backend, mr
}

func TestCachedStore_RecentConversationsServedFromCache(t *testing.T) {
	ctx := context.Background()
	store, backend, _ := newCachedTestStore(t)

	_, err := store.SaveConversation(ctx, "Sunny", "u1", []Message{user("hello")})
	require.NoError(t, err)

	first, err := store.GetRecentConversations(ctx, "Sunny", "u1", 3)
	require.NoError(t, err)
	second, err := store.GetRecentConversations(ctx, "Sunny", "u1", 3)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.recentCalls)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Messages, second[0].Messages)

	// A different limit is a different cache entry.
	_, err = store.GetRecentConversations(ctx, "Sunny", "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.recentCalls)
}

func TestCachedStore_SaveInvalidates(t *testing.T) {
	ctx := context.Background()
	store, backend, _ := newCachedTestStore(t)

	_, err := store.SaveConversation(ctx, "Sunny", "", []Message{user("first")})
	require.NoError(t, err)
	_, err = store.GetRecentConversations(ctx, "Sunny", "", 3)
	require.NoError(t, err)

	_, err = store.SaveConversation(ctx, "Sunny", "", []Message{user("second")})
	require.NoError(t, err)

	recent, err := store.GetRecentConversations(ctx, "Sunny", "", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.recentCalls)
	require.Len(t, recent, 2)
	assert.Equal(t, "second", recent[0].Messages[0].Content)
}

func TestCachedStore_EntriesExpire(t *testing.T) {
	ctx := context.Background()
	store, backend, mr := newCachedTestStore(t)

	_, err := store.GetRecentConversations(ctx, "Sunny", "u1", 3)
	require.NoError(t, err)
	mr.FastForward(2 * time.Minute)
	_, err = store.GetRecentConversations(ctx, "Sunny", "u1", 3)
	require.NoError(t, err)

	assert.Equal(t, 2, backend.recentCalls)
}

func TestCachedStore_FallsThroughWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	store, backend, mr := newCachedTestStore(t)
	mr.Close()

	_, err := store.SaveConversation(ctx, "Sunny", "u1", []Message{user("still saved")})
	require.NoError(t, err)

	recent, err := store.GetRecentConversations(ctx, "Sunny", "u1", 3)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, 1, backend.recentCalls)
}

func TestCachedStore_TemplatesCached(t *testing.T) {
	ctx := context.Background()
	store, backend, _ := newCachedTestStore(t)

	first, err := store.ListTemplates(ctx)
	require.NoError(t, err)
	second, err := store.ListTemplates(ctx)
	require.NoError(t, err)

	assert.Equal(t, 1, backend.templatesCalls)
	assert.Equal(t, first, second)
}
