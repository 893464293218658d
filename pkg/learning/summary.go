package learning

import "strings"

// Summary renders a result as markdown for display in a host.
func Summary(r Result) string {
	if !r.OK() {
		if r.Failure == nil || r.Failure.Message == "" {
			return "Analysis failed"
		}
		return r.Failure.Message
	}
	a := r.Analysis

	var sb strings.Builder
	sb.WriteString("## Learning Summary\n\n")

	if len(a.CommonTopics) > 0 {
		sb.WriteString("**Common Topics:** " + strings.Join(a.CommonTopics, ", ") + "\n\n")
	}
	if len(a.SuccessfulPatterns) > 0 {
		sb.WriteString("**Successful Patterns:** " + strings.Join(a.SuccessfulPatterns, ", ") + "\n\n")
	}

	if a.RawResponse != "" {
		sb.WriteString("\n" + a.RawResponse)
		return sb.String()
	}

	sb.WriteString("**Personality Growth:** " + a.SuggestedPersonalityAdditions + "\n\n")
	sb.WriteString("**Behavior Evolution:** " + a.SuggestedBehaviorAdditions + "\n\n")
	sb.WriteString("**Speaking Style Refinement:** " + a.SpeakingStyleRefinements + "\n\n")
	return sb.String()
}
