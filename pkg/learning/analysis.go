package learning

// Analysis is the structured outcome of a conversation review. RawResponse
// is set only when the model's text could not be parsed; the other fields
// are then empty.
type Analysis struct {
	CommonTopics                  []string `json:"common_topics"`
	SuccessfulPatterns            []string `json:"successful_patterns"`
	SuggestedPersonalityAdditions string   `json:"suggested_personality_additions"`
	SuggestedBehaviorAdditions    string   `json:"suggested_behavior_additions"`
	SpeakingStyleRefinements      string   `json:"speaking_style_refinements"`
	RawResponse                   string   `json:"raw_response,omitempty"`
}

type FailureKind string

const (
	FailureInsufficientData FailureKind = "insufficient_data"
	FailureTransport        FailureKind = "transport"
	FailureEmptyResponse    FailureKind = "empty_response"
)

// Failure explains why no analysis was produced. Message is meant for users.
type Failure struct {
	Kind    FailureKind
	Message string
}

// Result holds exactly one of Analysis or Failure.
type Result struct {
	Analysis *Analysis
	Failure  *Failure
}

func (r Result) OK() bool {
	return r.Analysis != nil
}

func succeeded(a Analysis) Result {
	return Result{Analysis: &a}
}

func failed(kind FailureKind, message string) Result {
	return Result{Failure: &Failure{Kind: kind, Message: message}}
}
