package memory

import "time"

// Role identifies the author of a chat message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat turn.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is a persisted chat session with one persona. Messages are in
// chronological order.
type Conversation struct {
	ID          string    `json:"id"`
	PersonaName string    `json:"persona_name"`
	OwnerID     string    `json:"owner_id,omitempty"`
	Messages    []Message `json:"messages"`
	CreatedAt   time.Time `json:"created_at"`
}
