package learning

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"

	"personabot/pkg/llm"
	"personabot/pkg/logging"
	"personabot/pkg/memory"
)

const minAnalysisMessages = 10

// MessageReader returns a persona's full history in chronological order.
type MessageReader interface {
	GetAllMessages(ctx context.Context, personaName, ownerID string) ([]memory.Message, error)
}

type Analyzer struct {
	store     MessageReader
	completer llm.Completer
	opts      llm.Options
	logger    *log.Logger
}

func NewAnalyzer(store MessageReader, completer llm.Completer, opts llm.Options, logger *log.Logger) *Analyzer {
	return &Analyzer{
		store:     store,
		completer: completer,
		opts:      opts,
		logger:    logging.OrDiscard(logger),
	}
}

// Analyze reviews every stored conversation with the persona and asks the
// model for recurring topics and suggested profile additions. It never
// returns an error; failures are reported in the Result.
func (a *Analyzer) Analyze(ctx context.Context, personaName, ownerID string) Result {
	messages, err := a.store.GetAllMessages(ctx, personaName, ownerID)
	if err != nil {
		a.logger.Error("failed to load conversation history", "persona", personaName, "error", err)
		return failed(FailureTransport, fmt.Sprintf("Error analyzing patterns: %v", err))
	}

	if len(messages) < minAnalysisMessages {
		return failed(FailureInsufficientData,
			"Need at least 5 conversation exchanges (10 messages) to analyze patterns.")
	}

	prompt := buildAnalysisPrompt(personaName, messages)
	a.logger.Debug("analyzing conversation patterns", "persona", personaName, "messages", len(messages))

	text, err := a.completer.Generate(ctx, prompt, a.opts)
	if err != nil {
		a.logger.Error("analysis completion failed", "persona", personaName, "error", err)
		return failed(FailureTransport, fmt.Sprintf("Error analyzing patterns: %v", err))
	}
	if strings.TrimSpace(text) == "" {
		return failed(FailureEmptyResponse, "Unable to generate analysis at this time.")
	}

	analysis, parsed := ExtractAnalysis(text)
	if !parsed {
		a.logger.Warn("analysis was not valid JSON, keeping raw text", "persona", personaName)
	}
	return succeeded(analysis)
}

func contentsBy(messages []memory.Message, role memory.Role) []string {
	return lo.FilterMap(messages, func(m memory.Message, _ int) (string, bool) {
		return m.Content, m.Role == role
	})
}

func buildAnalysisPrompt(personaName string, messages []memory.Message) string {
	userMessages := contentsBy(messages, memory.RoleUser)
	assistantMessages := contentsBy(messages, memory.RoleAssistant)

	first := func(xs []string) string { return strings.Join(lo.Subset(xs, 0, 5), "\n") }
	last := func(xs []string) string { return strings.Join(lo.Subset(xs, -3, 3), "\n") }

	return fmt.Sprintf(`Analyze these conversations with the persona "%s" to identify patterns and learning opportunities.

Total exchanges: %d

Sample user messages (first 5):
%s

Sample assistant responses (first 5):
%s

Latest user messages (last 3):
%s

Latest assistant responses (last 3):
%s

Analyze:
1. What topics does the user frequently discuss?
2. What response patterns are working well?
3. What speaking patterns has the persona developed?
4. What improvements would make the persona more authentic?

Provide a JSON response with these fields:
{
    "common_topics": ["topic1", "topic2", "topic3"],
    "successful_patterns": ["pattern1", "pattern2"],
    "suggested_personality_additions": "text describing additional personality traits based on conversations",
    "suggested_behavior_additions": "text describing new behaviors observed or needed",
    "speaking_style_refinements": "text describing speaking style improvements"
}`,
		personaName,
		len(messages)/2,
		first(userMessages),
		first(assistantMessages),
		last(userMessages),
		last(assistantMessages),
	)
}
