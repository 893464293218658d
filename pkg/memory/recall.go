package memory

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"

	"personabot/pkg/logging"
)

const (
	recallConversations    = 3
	recallMessagesPerTurn  = 4
	recallBulletsPerTurn   = 2
	recallMaxContentLength = 80
)

// Summarizer builds the memory context injected into the system prompt.
type Summarizer struct {
	store  ConversationReader
	logger *log.Logger
}

func NewSummarizer(store ConversationReader, logger *log.Logger) *Summarizer {
	return &Summarizer{
		store:  store,
		logger: logging.OrDiscard(logger),
	}
}

// Summarize returns a short recall of the latest user messages from the three
// most recent conversations, or "" when there is nothing to recall.
//
// Memory is optional: a storage failure is logged and degrades to "" so the
// chat turn always proceeds.
func (s *Summarizer) Summarize(ctx context.Context, personaName, ownerID string) string {
	conversations, err := s.store.GetRecentConversations(ctx, personaName, ownerID, recallConversations)
	if err != nil {
		s.logger.Warn("memory recall failed", "persona", personaName, "error", err)
		return ""
	}
	if len(conversations) == 0 {
		return ""
	}
	if len(conversations) > recallConversations {
		conversations = conversations[:recallConversations]
	}

	var sb strings.Builder
	sb.WriteString("\n\nMemory from previous conversations:\n")
	for _, conv := range conversations {
		points := sessionPoints(conv.Messages)
		if len(points) == 0 {
			continue
		}
		sb.WriteString("\nPrevious session:\n")
		sb.WriteString(strings.Join(points, "\n"))
	}
	sb.WriteString("\n\nUse these memories naturally in conversation when relevant.")
	return sb.String()
}

// sessionPoints walks the last few messages newest-first and keeps the user
// lines, so the result is ordered most recent first.
func sessionPoints(messages []Message) []string {
	var points []string
	n := min(recallMessagesPerTurn, len(messages))
	for i := 1; i <= n; i++ {
		msg := messages[len(messages)-i]
		if msg.Role != RoleUser {
			continue
		}
		points = append(points, "- User mentioned: "+truncate(msg.Content, recallMaxContentLength))
		if len(points) == recallBulletsPerTurn {
			break
		}
	}
	return points
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
