package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSummary_Failure(t *testing.T) {
	r := failed(FailureInsufficientData, "Need more data.")
	assert.Equal(t, "Need more data.", Summary(r))
	assert.Equal(t, "Analysis failed", Summary(Result{}))
}

func TestSummary_ParsedAnalysis(t *testing.T) {
	r := succeeded(Analysis{
		CommonTopics:                  []string{"hiking", "cooking"},
		SuccessfulPatterns:            []string{"questions"},
		SuggestedPersonalityAdditions: "adventurous",
		SuggestedBehaviorAdditions:    "shares tips",
		SpeakingStyleRefinements:      "metaphors",
	})

	want := "## Learning Summary\n\n" +
		"**Common Topics:** hiking, cooking\n\n" +
		"**Successful Patterns:** questions\n\n" +
		"**Personality Growth:** adventurous\n\n" +
		"**Behavior Evolution:** shares tips\n\n" +
		"**Speaking Style Refinement:** metaphors\n\n"
	assert.Equal(t, want, Summary(r))
}

func TestSummary_RawFallback(t *testing.T) {
	r := succeeded(Analysis{RawResponse: "free text"})
	assert.Equal(t, "## Learning Summary\n\n\nfree text", Summary(r))
}
