package persona

import (
	"fmt"
	"strings"
)

const promptHeader = "You are roleplaying as a character with the following attributes:\n\n"

const roleplayInstructions = `
Instructions:
- Stay in character at all times
- Respond naturally as this person would
- Use the speaking style and mannerisms described
- Draw from the personality traits and behaviors when forming responses
- If asked about things outside your character's knowledge, respond as that character would
`

// BaseSystemPrompt renders the profile fields and the role-play instructions.
func BaseSystemPrompt(p Profile) string {
	var sb strings.Builder
	sb.WriteString(promptHeader)

	fields := []struct {
		label string
		value string
	}{
		{"Name", p.Name},
		{"Personality Traits", p.Personality},
		{"Behaviors and Habits", p.Behaviors},
		{"Speaking Style", p.SpeakingStyle},
		{"Mannerisms and Quirks", p.Mannerisms},
		{"Background", p.Background},
	}
	for _, f := range fields {
		if !present(f.value) {
			continue
		}
		fmt.Fprintf(&sb, "%s: %s\n\n", f.label, f.value)
	}

	sb.WriteString(roleplayInstructions)
	return sb.String()
}

// EnhanceSystemPrompt appends emoji guidance and the tone and speaking
// pattern lists to a base prompt.
func EnhanceSystemPrompt(base string, tone ToneConfiguration) string {
	var sb strings.Builder
	sb.WriteString(base)

	switch tone.EmojiUsage {
	case EmojiHigh:
		fmt.Fprintf(&sb, "\n\nEmoji Usage: Use emojis frequently to express emotions and add warmth. Examples: %s", strings.Join(tone.EmojiExamples, ", "))
	case EmojiModerate:
		fmt.Fprintf(&sb, "\n\nEmoji Usage: Use emojis occasionally for emphasis. Examples: %s", strings.Join(tone.EmojiExamples, ", "))
	case EmojiMinimal:
		sb.WriteString("\n\nEmoji Usage: Use emojis sparingly or not at all. Maintain a more formal tone.")
	}

	writeBullets(&sb, "Tone Guidelines", tone.TonePatterns)
	writeBullets(&sb, "Speaking Patterns", tone.SpeakingPatterns)
	return sb.String()
}

// ComposeSystemPrompt builds the full system prompt for a chat turn. The
// memory context already carries its own heading and is appended verbatim.
func ComposeSystemPrompt(p Profile, tone ToneConfiguration, memoryContext string) string {
	prompt := EnhanceSystemPrompt(BaseSystemPrompt(p), tone)
	if memoryContext != "" {
		prompt += memoryContext
	}
	return prompt
}

func writeBullets(sb *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "\n\n%s:\n", heading)
	for i, item := range items {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("- " + item)
	}
}
