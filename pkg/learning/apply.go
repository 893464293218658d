package learning

import (
	"strings"

	"personabot/pkg/persona"
)

// ApplyLearning folds an analysis into a copy of the profile. Suggestions
// already contained verbatim in a field are not appended again, so applying
// the same analysis twice is a no-op the second time.
func ApplyLearning(p persona.Profile, a Analysis) persona.Profile {
	p.Personality = appendSuggestion(p.Personality, a.SuggestedPersonalityAdditions)
	p.Behaviors = appendSuggestion(p.Behaviors, a.SuggestedBehaviorAdditions)
	p.SpeakingStyle = appendSuggestion(p.SpeakingStyle, a.SpeakingStyleRefinements)
	return p
}

func appendSuggestion(current, suggestion string) string {
	suggestion = strings.Trim(suggestion, ", \t\n")
	if suggestion == "" || strings.Contains(current, suggestion) {
		return current
	}
	return strings.Trim(current+", "+suggestion, ", ")
}
