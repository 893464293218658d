package chat

import (
	"strings"

	"personabot/pkg/memory"
)

// BuildTranscriptPrompt appends the running conversation and the new user
// message to the system prompt, ending on the character's turn.
func BuildTranscriptPrompt(systemPrompt string, history []memory.Message, userMessage string) string {
	lines := make([]string, 0, len(history)+1)
	for _, msg := range history {
		if msg.Role == memory.RoleUser {
			lines = append(lines, "User: "+msg.Content)
		} else {
			lines = append(lines, "Character: "+msg.Content)
		}
	}
	lines = append(lines, "User: "+userMessage)

	return systemPrompt + "\n\nConversation:\n" + strings.Join(lines, "\n") + "\n\nCharacter:"
}
