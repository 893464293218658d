package memory

import (
	"context"
	"sync"
	"time"

	"personabot/pkg/persona"
)

// ConversationReader returns the most recently created conversations for a
// persona, newest first. An empty ownerID matches conversations without an
// owner.
type ConversationReader interface {
	GetRecentConversations(ctx context.Context, personaName, ownerID string, limit int) ([]Conversation, error)
}

// Store is the conversation persistence contract shared by every backend.
type Store interface {
	ConversationReader
	SaveConversation(ctx context.Context, personaName, ownerID string, messages []Message) (string, error)
	// GetAllMessages flattens every conversation for the persona in
	// chronological order.
	GetAllMessages(ctx context.Context, personaName, ownerID string) ([]Message, error)
}

// stampClock hands out strictly increasing unix-nano timestamps so creation
// order survives coarse clocks.
type stampClock struct {
	mu   sync.Mutex
	last int64
}

func (c *stampClock) stamp() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := time.Now().UnixNano()
	if n <= c.last {
		n = c.last + 1
	}
	c.last = n
	return n
}

// Backend is a storage implementation serving both conversations and the
// persona catalogue.
type Backend interface {
	Store
	persona.Repository
}
