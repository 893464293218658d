package learning

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"personabot/pkg/llm"
	"personabot/pkg/logging"
	"personabot/pkg/memory"
	"personabot/pkg/persona"
)

const (
	minRefineMessages     = 4
	refineHistoryMessages = 10
)

// Refiner asks the model for concrete profile improvements based on the
// current chat session.
type Refiner struct {
	completer llm.Completer
	opts      llm.Options
	logger    *log.Logger
}

func NewRefiner(completer llm.Completer, opts llm.Options, logger *log.Logger) *Refiner {
	return &Refiner{
		completer: completer,
		opts:      opts,
		logger:    logging.OrDiscard(logger),
	}
}

// Suggest returns the model's numbered suggestions, or a message explaining
// why none could be produced.
func (r *Refiner) Suggest(ctx context.Context, history []memory.Message, p persona.Profile) string {
	if len(history) < minRefineMessages {
		return "Need more conversation history (at least 2 exchanges) to generate refinement suggestions."
	}

	text, err := r.completer.Generate(ctx, buildRefinePrompt(history, p), r.opts)
	if err != nil {
		r.logger.Error("refinement completion failed", "error", err)
		return fmt.Sprintf("Error analyzing conversation: %v", err)
	}
	if strings.TrimSpace(text) == "" {
		return "Unable to generate suggestions at this time."
	}
	return text
}

func buildRefinePrompt(history []memory.Message, p persona.Profile) string {
	if len(history) > refineHistoryMessages {
		history = history[len(history)-refineHistoryMessages:]
	}

	var conversation strings.Builder
	for _, msg := range history {
		speaker := "Character"
		if msg.Role == memory.RoleUser {
			speaker = "User"
		}
		conversation.WriteString(speaker + ": " + msg.Content + "\n")
	}

	return fmt.Sprintf(`Analyze this conversation and the current character persona to suggest improvements.

Current Persona:
- Personality: %s
- Behaviors: %s
- Speaking Style: %s

Recent Conversation:
%s

Based on this conversation, provide 3-5 specific suggestions to improve the persona for more authentic and engaging interactions. Consider:
1. Are the responses staying true to the personality?
2. Are there patterns in the conversation that could be enhanced?
3. Are there missing personality elements that would improve the character?
4. Is the speaking style consistent?

Provide concise, actionable suggestions in a numbered list.`,
		orNotSpecified(p.Personality),
		orNotSpecified(p.Behaviors),
		orNotSpecified(p.SpeakingStyle),
		conversation.String(),
	)
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Not specified"
	}
	return s
}
