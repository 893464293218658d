package persona

// Feedback is an explicit like/dislike signal on a reply.
type Feedback int

const (
	FeedbackNegative Feedback = iota
	FeedbackPositive
)

// ParseFeedback maps host input ("good", "up", "positive", ...) to a signal.
// Anything unrecognised counts as negative.
func ParseFeedback(s string) Feedback {
	switch s {
	case "positive", "good", "up", "like", "👍":
		return FeedbackPositive
	default:
		return FeedbackNegative
	}
}

// Advise returns the advice lines shown after a feedback signal.
func Advise(f Feedback, p Profile) []string {
	if f == FeedbackPositive {
		return []string{
			"✅ Great! The character's response style is working well in this context.",
			"Consider saving this persona if you haven't already.",
		}
	}

	advice := []string{"💡 Here are some ways to improve:"}
	if present(p.SpeakingStyle) {
		advice = append(advice, "- Try adjusting the speaking style for better alignment")
	}
	if present(p.Personality) {
		advice = append(advice, "- Consider refining personality traits to better match expectations")
	}
	return append(advice, "- Use the 'Refine' feature to get AI-powered suggestions")
}
