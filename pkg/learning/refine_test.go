package learning

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"personabot/pkg/memory"
	"personabot/pkg/persona"
)

func TestSuggest_NeedsFourMessages(t *testing.T) {
	completer := &recordingCompleter{reply: "1. Be bolder"}
	r := NewRefiner(completer, analysisOptions, nil)

	got := r.Suggest(context.Background(), exchanges(1), persona.Profile{Personality: "shy"})
	assert.Equal(t, "Need more conversation history (at least 2 exchanges) to generate refinement suggestions.", got)
	assert.Zero(t, completer.calls)
}

func TestSuggest_UsesLastTenMessages(t *testing.T) {
	completer := &recordingCompleter{reply: "1. Be bolder"}
	r := NewRefiner(completer, analysisOptions, nil)

	got := r.Suggest(context.Background(), exchanges(8), persona.Profile{Personality: "shy"})
	assert.Equal(t, "1. Be bolder", got)

	assert.NotContains(t, completer.prompt, "User: user 3\n")
	assert.Contains(t, completer.prompt, "User: user 4\nCharacter: assistant 4\n")
	assert.Contains(t, completer.prompt, "Character: assistant 8\n")
	assert.Equal(t, 10, strings.Count(completer.prompt, ": user ")+strings.Count(completer.prompt, ": assistant "))
}

func TestSuggest_ProfileFieldsInPrompt(t *testing.T) {
	completer := &recordingCompleter{reply: "ok"}
	r := NewRefiner(completer, analysisOptions, nil)

	r.Suggest(context.Background(), exchanges(2), persona.Profile{Personality: "shy", SpeakingStyle: "  "})
	assert.Contains(t, completer.prompt, "- Personality: shy\n")
	assert.Contains(t, completer.prompt, "- Behaviors: Not specified\n")
	assert.Contains(t, completer.prompt, "- Speaking Style: Not specified\n")
}

func TestSuggest_Failures(t *testing.T) {
	history := exchanges(2)

	empty := NewRefiner(&recordingCompleter{reply: ""}, analysisOptions, nil)
	assert.Equal(t, "Unable to generate suggestions at this time.", empty.Suggest(context.Background(), history, persona.Profile{}))

	broken := NewRefiner(&recordingCompleter{err: errors.New("timeout")}, analysisOptions, nil)
	assert.Equal(t, fmt.Sprintf("Error analyzing conversation: %v", "timeout"), broken.Suggest(context.Background(), history, persona.Profile{}))
}

func TestBuildRefinePrompt_RoleLabels(t *testing.T) {
	prompt := buildRefinePrompt([]memory.Message{
		{Role: memory.RoleUser, Content: "hi"},
		{Role: memory.RoleAssistant, Content: "hello"},
	}, persona.Profile{})
	assert.Contains(t, prompt, "Recent Conversation:\nUser: hi\nCharacter: hello\n\n")
}
