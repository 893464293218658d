package bot

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// maxMessageRunes is Discord's per-message content limit.
const maxMessageRunes = 2000

func (h *Handler) sendSplitMessage(s Session, channelID, content string, reference *discordgo.MessageReference) {
	isFirstPart := true
	for _, part := range splitMessage(content) {
		var err error
		if reference == nil {
			_, err = s.ChannelMessageSend(channelID, part)
		} else if isFirstPart {
			// The first part of a reply pings the user by default
			_, err = s.ChannelMessageSendReply(channelID, part, reference)
			isFirstPart = false
		} else {
			_, err = s.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
				Content:   part,
				Reference: reference,
				AllowedMentions: &discordgo.MessageAllowedMentions{
					RepliedUser: false,
				},
			})
		}

		if err != nil {
			h.logger.Error("sending message part", "channel", channelID, "error", err)
		}
	}
}

// splitMessage breaks a reply on blank lines and then on the Discord length
// limit. Empty parts are dropped.
func splitMessage(content string) []string {
	var parts []string
	for _, part := range strings.Split(content, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parts = append(parts, chunkRunes(part, maxMessageRunes)...)
	}
	return parts
}

// chunkRunes cuts s into pieces of at most n runes.
func chunkRunes(s string, n int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var chunks []string
	for len(runes) > n {
		chunks = append(chunks, string(runes[:n]))
		runes = runes[n:]
	}
	return append(chunks, string(runes))
}

func (h *Handler) saveIdleSessions(ctx context.Context) {
	defer h.wg.Done()

	// Check for idle sessions every minute
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.persistIdleSessions(ctx)
		}
	}
}

// persistIdleSessions saves every session untouched for longer than the idle
// timeout.
func (h *Handler) persistIdleSessions(ctx context.Context) {
	// 1. Identify idle sessions (hold lock briefly)
	now := h.now()
	var idle []string
	h.sessionsMu.Lock()
	for userID, sess := range h.sessions {
		if len(sess.messages) > 0 && now.Sub(sess.lastActive) > h.idleTimeout {
			idle = append(idle, userID)
		}
	}
	h.sessionsMu.Unlock()

	// 2. Save them (no lock held during store calls)
	for _, userID := range idle {
		saved, err := h.flushSession(ctx, userID)
		if err != nil {
			h.logger.Error("saving idle session", "user", userID, "error", err)
			continue
		}
		if saved {
			h.logger.Info("saved idle session", "user", userID)
		}
	}
}
