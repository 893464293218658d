package chat

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"

	"personabot/pkg/learning"
	"personabot/pkg/llm"
	"personabot/pkg/logging"
	"personabot/pkg/memory"
	"personabot/pkg/persona"
)

// FallbackReply is sent when the model answers with blank text.
const FallbackReply = "I'm having trouble responding right now."

type Options struct {
	Reply    llm.Options
	Analysis llm.Options
}

// Service runs chat turns against a persona and drives the learning loop.
// It holds no per-session state; hosts own the running history.
type Service struct {
	store      memory.Store
	completer  llm.Completer
	summarizer *memory.Summarizer
	analyzer   *learning.Analyzer
	refiner    *learning.Refiner
	replyOpts  llm.Options
	logger     *log.Logger
}

func NewService(store memory.Store, completer llm.Completer, opts Options, logger *log.Logger) *Service {
	logger = logging.OrDiscard(logger)
	return &Service{
		store:      store,
		completer:  completer,
		summarizer: memory.NewSummarizer(store, logger.WithPrefix("memory")),
		analyzer:   learning.NewAnalyzer(store, completer, opts.Analysis, logger.WithPrefix("analyzer")),
		refiner:    learning.NewRefiner(completer, opts.Analysis, logger.WithPrefix("refiner")),
		replyOpts:  opts.Reply,
		logger:     logger,
	}
}

// PersonaKey is the name conversations are filed under.
func PersonaKey(p persona.Profile) string {
	return p.DisplayName()
}

// SystemPrompt builds the full persona prompt, including recalled memory.
func (s *Service) SystemPrompt(ctx context.Context, p persona.Profile, ownerID string) string {
	memoryContext := s.summarizer.Summarize(ctx, PersonaKey(p), ownerID)
	return persona.ComposeSystemPrompt(p, persona.Classify(p), memoryContext)
}

// Reply generates the persona's answer to userMessage given the session so
// far. history must not include userMessage.
func (s *Service) Reply(ctx context.Context, p persona.Profile, ownerID string, history []memory.Message, userMessage string) (string, error) {
	prompt := BuildTranscriptPrompt(s.SystemPrompt(ctx, p, ownerID), history, userMessage)

	text, err := s.completer.Generate(ctx, prompt, s.replyOpts)
	if err != nil {
		return "", errors.Wrap(err, "generate reply")
	}
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("empty reply from model", "persona", PersonaKey(p))
		return FallbackReply, nil
	}
	return strings.TrimSpace(text), nil
}

// SaveSession persists a finished session. Empty sessions are ignored and
// return "".
func (s *Service) SaveSession(ctx context.Context, p persona.Profile, ownerID string, messages []memory.Message) (string, error) {
	if len(messages) == 0 {
		return "", nil
	}
	id, err := s.store.SaveConversation(ctx, PersonaKey(p), ownerID, messages)
	if err != nil {
		return "", errors.Wrap(err, "save session")
	}
	s.logger.Info("saved conversation", "persona", PersonaKey(p), "messages", len(messages), "id", id)
	return id, nil
}

// Learn analyzes the persona's history and, on success, returns the profile
// with the suggestions applied. The returned bool reports whether the
// profile changed.
func (s *Service) Learn(ctx context.Context, p persona.Profile, ownerID string) (learning.Result, persona.Profile, bool) {
	result := s.analyzer.Analyze(ctx, PersonaKey(p), ownerID)
	if !result.OK() {
		return result, p, false
	}
	updated := learning.ApplyLearning(p, *result.Analysis)
	return result, updated, updated != p
}

func (s *Service) Feedback(f persona.Feedback, p persona.Profile) []string {
	return persona.Advise(f, p)
}

func (s *Service) Refine(ctx context.Context, p persona.Profile, history []memory.Message) string {
	return s.refiner.Suggest(ctx, history, p)
}
