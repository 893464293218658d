package bot

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"personabot/pkg/learning"
	"personabot/pkg/memory"
	"personabot/pkg/persona"
)

// MockSession implements Session for testing
type MockSession struct {
	mu           sync.Mutex
	SentMessages []string
	TypingCalls  int
	ChannelType  discordgo.ChannelType // Configurable channel type for testing
	Responses    []*discordgo.InteractionResponse
	Followups    []string
}

func (m *MockSession) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentMessages = append(m.SentMessages, content)
	return &discordgo.Message{ID: "mock_msg_id", ChannelID: channelID, Content: content}, nil
}

func (m *MockSession) ChannelMessageSendReply(channelID string, content string, reference *discordgo.MessageReference, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return m.ChannelMessageSend(channelID, content)
}

func (m *MockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return m.ChannelMessageSend(channelID, data.Content)
}

func (m *MockSession) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TypingCalls++
	return nil
}

func (m *MockSession) Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	channelType := m.ChannelType
	if channelType == 0 {
		channelType = discordgo.ChannelTypeGuildText // Default to guild text channel
	}
	return &discordgo.Channel{ID: channelID, Type: channelType}, nil
}

func (m *MockSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Responses = append(m.Responses, resp)
	return nil
}

func (m *MockSession) FollowupMessageCreate(interaction *discordgo.Interaction, wait bool, data *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Followups = append(m.Followups, data.Content)
	return &discordgo.Message{ID: "followup", Content: data.Content}, nil
}

// lastResponse is the content of the most recent immediate interaction reply.
func (m *MockSession) lastResponse(t *testing.T) string {
	t.Helper()
	require.NotEmpty(t, m.Responses)
	resp := m.Responses[len(m.Responses)-1]
	require.NotNil(t, resp.Data)
	return resp.Data.Content
}

// fakeChat implements ChatService with overridable behaviour.
type fakeChat struct {
	mu       sync.Mutex
	replies  []replyCall
	saved    [][]memory.Message
	ReplyFn  func(p persona.Profile, history []memory.Message, msg string) (string, error)
	SaveErr  error
	LearnFn  func(p persona.Profile) (learning.Result, persona.Profile, bool)
	RefineFn func(p persona.Profile, history []memory.Message) string
}

type replyCall struct {
	profile persona.Profile
	ownerID string
	history []memory.Message
	message string
}

func (f *fakeChat) Reply(ctx context.Context, p persona.Profile, ownerID string, history []memory.Message, userMessage string) (string, error) {
	f.mu.Lock()
	f.replies = append(f.replies, replyCall{profile: p, ownerID: ownerID, history: history, message: userMessage})
	f.mu.Unlock()
	if f.ReplyFn != nil {
		return f.ReplyFn(p, history, userMessage)
	}
	return "reply to " + userMessage, nil
}

func (f *fakeChat) SaveSession(ctx context.Context, p persona.Profile, ownerID string, messages []memory.Message) (string, error) {
	if f.SaveErr != nil {
		return "", f.SaveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, messages)
	return "conv-id", nil
}

func (f *fakeChat) Learn(ctx context.Context, p persona.Profile, ownerID string) (learning.Result, persona.Profile, bool) {
	if f.LearnFn != nil {
		return f.LearnFn(p)
	}
	return learning.Result{Failure: &learning.Failure{Kind: learning.FailureInsufficientData, Message: "not enough"}}, p, false
}

func (f *fakeChat) Feedback(fb persona.Feedback, p persona.Profile) []string {
	return persona.Advise(fb, p)
}

func (f *fakeChat) Refine(ctx context.Context, p persona.Profile, history []memory.Message) string {
	if f.RefineFn != nil {
		return f.RefineFn(p, history)
	}
	return "1. Be bolder"
}

// fakeRepo is an in-memory persona.Repository.
type fakeRepo struct {
	mu        sync.Mutex
	personas  map[string]persona.Record
	templates []persona.Template
	updates   int
}

func newFakeRepo() *fakeRepo {
	var templates []persona.Template
	for i, t := range persona.DefaultTemplates() {
		t.ID = "tpl-" + string(rune('a'+i))
		templates = append(templates, t)
	}
	return &fakeRepo{personas: make(map[string]persona.Record), templates: templates}
}

func (r *fakeRepo) SavePersona(ctx context.Context, ownerID string, p persona.Profile) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := "p-" + string(rune('0'+len(r.personas)))
	r.personas[id] = persona.Record{ID: id, OwnerID: ownerID, Profile: p}
	return id, nil
}

func (r *fakeRepo) GetPersona(ctx context.Context, id string) (*persona.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.personas[id]
	if !ok {
		return nil, persona.ErrNotFound
	}
	return &rec, nil
}

func (r *fakeRepo) ListPersonas(ctx context.Context, ownerID string) ([]persona.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []persona.Record
	for _, rec := range r.personas {
		if rec.OwnerID == ownerID {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (r *fakeRepo) UpdatePersona(ctx context.Context, id string, p persona.Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.personas[id]
	if !ok {
		return persona.ErrNotFound
	}
	rec.Profile = p
	r.personas[id] = rec
	r.updates++
	return nil
}

func (r *fakeRepo) DeletePersona(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.personas, id)
	return nil
}

func (r *fakeRepo) ListTemplates(ctx context.Context) ([]persona.Template, error) {
	return r.templates, nil
}

func (r *fakeRepo) GetTemplate(ctx context.Context, id string) (*persona.Template, error) {
	for _, t := range r.templates {
		if t.ID == id {
			return &t, nil
		}
	}
	return nil, persona.ErrNotFound
}

var mentor = persona.Profile{
	Name:          "Mentor",
	Personality:   "Wise, patient",
	SpeakingStyle: "Measured",
}

func newTestHandler() (*Handler, *fakeChat, *fakeRepo) {
	chat := &fakeChat{}
	repo := newFakeRepo()
	h := NewHandler(chat, repo, Options{IdleTimeout: 10 * time.Minute}, nil)
	h.SetBotID("bot")
	return h, chat, repo
}

func dm(userID, content string) *discordgo.MessageCreate {
	return &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "msg",
		ChannelID: "dm-channel",
		Content:   content,
		Author:    &discordgo.User{ID: userID, Username: "tester"},
	}}
}

func TestHandleMessage_IgnoresOwnAndUnaddressedMessages(t *testing.T) {
	h, chat, _ := newTestHandler()
	h.activate(context.Background(), "u1", "p-0", mentor)
	session := &MockSession{}

	h.HandleMessage(session, dm("bot", "talking to myself"))
	h.HandleMessage(session, dm("u1", "just chatting in a guild channel"))

	assert.Empty(t, chat.replies)
	assert.Empty(t, session.SentMessages)
}

func TestHandleMessage_WithoutPersonaPromptsForOne(t *testing.T) {
	h, chat, _ := newTestHandler()
	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(session, dm("u1", "hello"))

	assert.Empty(t, chat.replies)
	assert.Equal(t, []string{noPersonaMessage}, session.SentMessages)
}

func TestHandleMessage_DMRepliesAndKeepsHistory(t *testing.T) {
	h, chat, _ := newTestHandler()
	h.activate(context.Background(), "u1", "p-0", mentor)
	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(session, dm("u1", "hello"))
	h.HandleMessage(session, dm("u1", "how are you?"))

	require.Len(t, chat.replies, 2)
	assert.Equal(t, "u1", chat.replies[0].ownerID)
	assert.Equal(t, mentor, chat.replies[0].profile)
	assert.Empty(t, chat.replies[0].history)
	assert.Equal(t, []memory.Message{
		{Role: memory.RoleUser, Content: "hello"},
		{Role: memory.RoleAssistant, Content: "reply to hello"},
	}, chat.replies[1].history)
	assert.Equal(t, []string{"reply to hello", "reply to how are you?"}, session.SentMessages)
	assert.Equal(t, 2, session.TypingCalls)
}

func TestHandleMessage_MentionIsStripped(t *testing.T) {
	h, chat, _ := newTestHandler()
	h.activate(context.Background(), "u1", "p-0", mentor)
	session := &MockSession{}

	m := dm("u1", "<@bot> tell me a story")
	m.Mentions = []*discordgo.User{{ID: "bot"}}
	h.HandleMessage(session, m)

	require.Len(t, chat.replies, 1)
	assert.Equal(t, "tell me a story", chat.replies[0].message)
}

func TestHandleMessage_ReplyErrorIsNotRecorded(t *testing.T) {
	h, chat, _ := newTestHandler()
	chat.ReplyFn = func(persona.Profile, []memory.Message, string) (string, error) {
		return "", errors.New("provider down")
	}
	h.activate(context.Background(), "u1", "p-0", mentor)
	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(session, dm("u1", "hello"))

	assert.Equal(t, []string{replyErrorText}, session.SentMessages)
	_, history, ok := h.snapshot("u1")
	require.True(t, ok)
	assert.Empty(t, history)
}

func TestHandleMessage_SplitsOnBlankLines(t *testing.T) {
	h, chat, _ := newTestHandler()
	chat.ReplyFn = func(persona.Profile, []memory.Message, string) (string, error) {
		return "first part\n\nsecond part", nil
	}
	h.activate(context.Background(), "u1", "p-0", mentor)
	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	h.HandleMessage(session, dm("u1", "hi"))

	assert.Equal(t, []string{"first part", "second part"}, session.SentMessages)
}

func TestSplitMessage(t *testing.T) {
	assert.Empty(t, splitMessage("  \n\n  "))
	assert.Equal(t, []string{"a", "b"}, splitMessage("a\n\n\n\nb"))

	long := strings.Repeat("é", maxMessageRunes+5)
	parts := splitMessage(long)
	require.Len(t, parts, 2)
	assert.Len(t, []rune(parts[0]), maxMessageRunes)
	assert.Len(t, []rune(parts[1]), 5)
}

func TestPersistIdleSessions(t *testing.T) {
	h, chat, _ := newTestHandler()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	now := start
	h.now = func() time.Time { return now }

	ctx := context.Background()
	h.activate(ctx, "idle", "p-0", mentor)
	h.activate(ctx, "busy", "p-1", mentor)
	h.activate(ctx, "empty", "p-2", mentor)
	h.appendTurn("idle", "hi", "hello")

	now = start.Add(8 * time.Minute)
	h.appendTurn("busy", "still here", "good")

	now = start.Add(11 * time.Minute)
	h.persistIdleSessions(ctx)

	require.Len(t, chat.saved, 1)
	assert.Equal(t, "hi", chat.saved[0][0].Content)

	_, history, ok := h.snapshot("idle")
	require.True(t, ok, "persona stays active after saving")
	assert.Empty(t, history)

	_, history, _ = h.snapshot("busy")
	assert.Len(t, history, 2)
}

func TestFlushSession_FailureKeepsMessages(t *testing.T) {
	h, chat, _ := newTestHandler()
	chat.SaveErr = errors.New("db locked")
	ctx := context.Background()
	h.activate(ctx, "u1", "p-0", mentor)
	h.appendTurn("u1", "hi", "hello")

	saved, err := h.flushSession(ctx, "u1")
	require.Error(t, err)
	assert.False(t, saved)

	_, history, _ := h.snapshot("u1")
	assert.Len(t, history, 2)
}

func TestActivate_SavesPreviousSession(t *testing.T) {
	h, chat, _ := newTestHandler()
	ctx := context.Background()
	h.activate(ctx, "u1", "p-0", mentor)
	h.appendTurn("u1", "hi", "hello")

	h.activate(ctx, "u1", "p-1", persona.Profile{Name: "Other", Personality: "Calm"})

	require.Len(t, chat.saved, 1)
	profile, history, _ := h.snapshot("u1")
	assert.Equal(t, "Other", profile.Name)
	assert.Empty(t, history)
}

func TestStartStop_FlushesSessions(t *testing.T) {
	h, chat, _ := newTestHandler()
	h.sweepInterval = time.Hour
	h.Start(context.Background())

	h.activate(context.Background(), "u1", "p-0", mentor)
	h.appendTurn("u1", "hi", "hello")
	h.Stop()

	require.Len(t, chat.saved, 1)
}

func TestRunLearningSweep_UpdatesChangedPersonas(t *testing.T) {
	h, chat, repo := newTestHandler()
	ctx := context.Background()

	id, err := repo.SavePersona(ctx, "u1", mentor)
	require.NoError(t, err)
	h.activate(ctx, "u1", id, mentor)
	h.appendTurn("u1", "hi", "hello")
	_, err = h.flushSession(ctx, "u1")
	require.NoError(t, err)

	learned := mentor
	learned.Personality = "Wise, patient, curious"
	chat.LearnFn = func(p persona.Profile) (learning.Result, persona.Profile, bool) {
		return learning.Result{Analysis: &learning.Analysis{SuggestedPersonalityAdditions: "curious"}}, learned, true
	}

	h.runLearningSweep(ctx)

	assert.Equal(t, 1, repo.updates)
	rec, err := repo.GetPersona(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, learned, rec.Profile)
	profile, _, _ := h.snapshot("u1")
	assert.Equal(t, learned, profile)
}

func TestRunLearningSweep_OnlyNewConversations(t *testing.T) {
	h, chat, repo := newTestHandler()
	ctx := context.Background()

	id, err := repo.SavePersona(ctx, "u1", mentor)
	require.NoError(t, err)
	h.activate(ctx, "u1", id, mentor)

	var learns int
	chat.LearnFn = func(p persona.Profile) (learning.Result, persona.Profile, bool) {
		learns++
		return learning.Result{Analysis: &learning.Analysis{}}, p, false
	}

	// Unsaved messages are neither saved nor learned from.
	h.appendTurn("u1", "hi", "hello")
	h.runLearningSweep(ctx)
	assert.Equal(t, 0, learns)
	assert.Empty(t, chat.saved)
	_, history, _ := h.snapshot("u1")
	assert.Len(t, history, 2)

	_, err = h.flushSession(ctx, "u1")
	require.NoError(t, err)
	h.runLearningSweep(ctx)
	assert.Equal(t, 1, learns)

	h.runLearningSweep(ctx)
	assert.Equal(t, 1, learns, "nothing saved since the last pass")
}

func TestStart_WhileMessagesArrive(t *testing.T) {
	h, chat, _ := newTestHandler()
	h.activate(context.Background(), "u1", "p-0", mentor)
	session := &MockSession{ChannelType: discordgo.ChannelTypeDM}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.HandleMessage(session, dm("u1", "hi"))
	}()
	h.Start(context.Background())
	wg.Wait()
	h.Stop()

	assert.Len(t, chat.replies, 1)
	require.Len(t, chat.saved, 1)
}
