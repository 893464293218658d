package persona

import "strings"

// EmojiUsage is how freely a character should use emoji.
type EmojiUsage string

const (
	EmojiHigh     EmojiUsage = "high"
	EmojiModerate EmojiUsage = "moderate"
	EmojiMinimal  EmojiUsage = "minimal"
)

// ToneConfiguration is derived from a profile's personality and speaking
// style. It is recomputed on every turn and never stored.
type ToneConfiguration struct {
	EmojiUsage       EmojiUsage `json:"emoji_usage"`
	EmojiExamples    []string   `json:"emoji_examples"`
	TonePatterns     []string   `json:"tone_patterns"`
	SpeakingPatterns []string   `json:"speaking_patterns"`
}

var (
	highEmojiKeywords = []string{"cheerful", "enthusiastic", "upbeat", "energetic", "bubbly", "expressive", "fun", "playful"}
	lowEmojiKeywords  = []string{"serious", "professional", "formal", "reserved", "stoic", "academic", "scholarly"}

	highEmojiExamples     = []string{"😊", "✨", "🎉", "💫", "🌟", "❤️", "🙌", "👍"}
	moderateEmojiExamples = []string{"😊", "👍", "✨"}
)

// Tone and speaking rules. Order matters: it is the order of the emitted
// instructions.
var toneRules = []struct {
	personality   []string
	speakingStyle []string
	instruction   string
}{
	{personality: []string{"friendly", "warm"}, instruction: "Use warm, welcoming language"},
	{personality: []string{"professional"}, speakingStyle: []string{"formal"}, instruction: "Maintain professional demeanor"},
	{personality: []string{"relaxed"}, speakingStyle: []string{"casual"}, instruction: "Keep responses conversational and relaxed"},
	{personality: []string{"enthusiastic", "excited"}, instruction: "Show excitement with exclamation marks"},
	{personality: []string{"thoughtful", "contemplative"}, instruction: "Take time to reflect before responding"},
	{personality: []string{"humorous", "witty", "funny"}, instruction: "Include appropriate humor and wit"},
}

// Classify derives the tone configuration for a profile. It never fails; a
// profile without any recognised keyword gets moderate emoji usage.
func Classify(p Profile) ToneConfiguration {
	personality := strings.ToLower(p.Personality)
	style := strings.ToLower(p.SpeakingStyle)

	cfg := ToneConfiguration{
		EmojiUsage:       EmojiModerate,
		EmojiExamples:    []string{},
		TonePatterns:     []string{},
		SpeakingPatterns: []string{},
	}

	switch {
	case containsAny(personality, highEmojiKeywords) || containsAny(style, highEmojiKeywords):
		cfg.EmojiUsage = EmojiHigh
		cfg.EmojiExamples = append(cfg.EmojiExamples, highEmojiExamples...)
	case containsAny(personality, lowEmojiKeywords) || containsAny(style, lowEmojiKeywords):
		cfg.EmojiUsage = EmojiMinimal
	default:
		cfg.EmojiExamples = append(cfg.EmojiExamples, moderateEmojiExamples...)
	}

	for _, rule := range toneRules {
		if containsAny(personality, rule.personality) || containsAny(style, rule.speakingStyle) {
			cfg.TonePatterns = append(cfg.TonePatterns, rule.instruction)
		}
	}

	if containsAny(style, []string{"short", "concise"}) {
		cfg.SpeakingPatterns = append(cfg.SpeakingPatterns, "Keep responses brief and to the point")
	} else if containsAny(style, []string{"detailed", "elaborate"}) {
		cfg.SpeakingPatterns = append(cfg.SpeakingPatterns, "Provide detailed, comprehensive responses")
	}
	if containsAny(personality, []string{"questions", "curious"}) {
		cfg.SpeakingPatterns = append(cfg.SpeakingPatterns, "Ask follow-up questions naturally")
	}
	if containsAny(personality, []string{"stories"}) || containsAny(style, []string{"narrative"}) {
		cfg.SpeakingPatterns = append(cfg.SpeakingPatterns, "Share relevant anecdotes and stories")
	}

	return cfg
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
