package persona

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify_EmojiUsage(t *testing.T) {
	tests := []struct {
		name     string
		profile  Profile
		want     EmojiUsage
		examples int
	}{
		{"cheerful personality", Profile{Personality: "Cheerful, optimistic"}, EmojiHigh, 8},
		{"upper case keyword", Profile{Personality: "CHEERFUL"}, EmojiHigh, 8},
		{"playful speaking style", Profile{Personality: "Kind", SpeakingStyle: "Playful banter"}, EmojiHigh, 8},
		{"formal personality", Profile{Personality: "Formal and precise"}, EmojiMinimal, 0},
		{"academic speaking style", Profile{Personality: "Patient", SpeakingStyle: "Academic"}, EmojiMinimal, 0},
		{"high wins over low", Profile{Personality: "Serious but fun"}, EmojiHigh, 8},
		{"no keywords", Profile{Personality: "Kind and patient"}, EmojiModerate, 3},
		{"empty profile", Profile{}, EmojiModerate, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Classify(tt.profile)
			assert.Equal(t, tt.want, cfg.EmojiUsage)
			assert.Len(t, cfg.EmojiExamples, tt.examples)
		})
	}
}

func TestClassify_HighEmojiSet(t *testing.T) {
	cfg := Classify(Profile{Personality: "bubbly"})
	assert.Equal(t, []string{"😊", "✨", "🎉", "💫", "🌟", "❤️", "🙌", "👍"}, cfg.EmojiExamples)
}

func TestClassify_TonePatternsOrder(t *testing.T) {
	cfg := Classify(Profile{
		Personality:   "Witty, thoughtful, enthusiastic, relaxed, professional, friendly",
		SpeakingStyle: "formal",
	})

	assert.Equal(t, []string{
		"Use warm, welcoming language",
		"Maintain professional demeanor",
		"Keep responses conversational and relaxed",
		"Show excitement with exclamation marks",
		"Take time to reflect before responding",
		"Include appropriate humor and wit",
	}, cfg.TonePatterns)
}

func TestClassify_TonePatternsFieldScoped(t *testing.T) {
	// "warm" only counts in personality, "casual" only in speaking style.
	cfg := Classify(Profile{Personality: "casual", SpeakingStyle: "warm"})
	assert.Empty(t, cfg.TonePatterns)

	cfg = Classify(Profile{Personality: "warm", SpeakingStyle: "casual"})
	assert.Equal(t, []string{
		"Use warm, welcoming language",
		"Keep responses conversational and relaxed",
	}, cfg.TonePatterns)
}

func TestClassify_SpeakingPatterns(t *testing.T) {
	tests := []struct {
		name    string
		profile Profile
		want    []string
	}{
		{
			name:    "short wins over detailed",
			profile: Profile{SpeakingStyle: "short yet detailed"},
			want:    []string{"Keep responses brief and to the point"},
		},
		{
			name:    "elaborate",
			profile: Profile{SpeakingStyle: "Elaborate"},
			want:    []string{"Provide detailed, comprehensive responses"},
		},
		{
			name:    "curious storyteller",
			profile: Profile{Personality: "Curious, loves telling stories", SpeakingStyle: "concise"},
			want: []string{
				"Keep responses brief and to the point",
				"Ask follow-up questions naturally",
				"Share relevant anecdotes and stories",
			},
		},
		{
			name:    "narrative style",
			profile: Profile{SpeakingStyle: "narrative"},
			want:    []string{"Share relevant anecdotes and stories"},
		},
		{
			name:    "nothing",
			profile: Profile{Personality: "calm"},
			want:    []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.profile).SpeakingPatterns)
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	p := Profile{Personality: "Friendly, curious, humorous", SpeakingStyle: "casual, short"}
	assert.Equal(t, Classify(p), Classify(p))
}
