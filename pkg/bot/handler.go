package bot

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/charmbracelet/log"

	"personabot/pkg/logging"
	"personabot/pkg/memory"
	"personabot/pkg/persona"
)

const (
	requestTimeout     = 2 * time.Minute
	defaultIdleTimeout = 15 * time.Minute

	noPersonaMessage = "You don't have an active persona yet. Use `/persona create` or `/persona template` to pick one."
	replyErrorText   = "Sorry, I couldn't come up with a reply just now. Try again in a moment?"
)

// Options tunes the background work of a Handler.
type Options struct {
	// IdleTimeout is how long a session may sit untouched before it is saved.
	IdleTimeout time.Duration
	// SweepInterval enables the periodic learning sweep when positive.
	SweepInterval time.Duration
}

// chatSession is one user's running conversation with their active persona.
type chatSession struct {
	personaID  string
	profile    persona.Profile
	messages   []memory.Message
	lastActive time.Time

	// learnPending is set when a conversation was saved after the last
	// learning pass.
	learnPending bool
}

type Handler struct {
	chat     ChatService
	personas persona.Repository
	logger   *log.Logger
	botID    string

	idleTimeout   time.Duration
	sweepInterval time.Duration

	sessions   map[string]*chatSession
	sessionsMu sync.Mutex

	processingUsers map[string]bool
	processingMu    sync.Mutex

	baseCtx context.Context
	cancel  context.CancelFunc
	ctxMu   sync.RWMutex
	wg      sync.WaitGroup
	now     func() time.Time
}

func NewHandler(chat ChatService, personas persona.Repository, opts Options, logger *log.Logger) *Handler {
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = defaultIdleTimeout
	}
	return &Handler{
		chat:            chat,
		personas:        personas,
		logger:          logging.OrDiscard(logger),
		idleTimeout:     opts.IdleTimeout,
		sweepInterval:   opts.SweepInterval,
		sessions:        make(map[string]*chatSession),
		processingUsers: make(map[string]bool),
		baseCtx:         context.Background(),
		cancel:          func() {},
		now:             time.Now,
	}
}

func (h *Handler) SetBotID(id string) {
	h.botID = id
}

// Start launches the idle-session saver and, when configured, the learning
// sweep. Both stop when ctx is cancelled or Stop is called.
func (h *Handler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	h.ctxMu.Lock()
	h.baseCtx = ctx
	h.cancel = cancel
	h.ctxMu.Unlock()

	h.wg.Add(1)
	go h.saveIdleSessions(ctx)

	if h.sweepInterval > 0 {
		h.wg.Add(1)
		go h.learningSweep(ctx)
	}
}

// Stop halts background work and saves every session that still holds
// unsaved messages.
func (h *Handler) Stop() {
	h.ctxMu.RLock()
	cancel := h.cancel
	h.ctxMu.RUnlock()
	cancel()
	h.wg.Wait()

	h.sessionsMu.Lock()
	users := make([]string, 0, len(h.sessions))
	for userID := range h.sessions {
		users = append(users, userID)
	}
	h.sessionsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	for _, userID := range users {
		if _, err := h.flushSession(ctx, userID); err != nil {
			h.logger.Error("saving session on shutdown", "user", userID, "error", err)
		}
	}
}

func (h *Handler) requestContext() (context.Context, context.CancelFunc) {
	h.ctxMu.RLock()
	base := h.baseCtx
	h.ctxMu.RUnlock()
	return context.WithTimeout(base, requestTimeout)
}

func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.HandleMessage(&DiscordSession{s}, m)
}

func (h *Handler) HandleMessage(s Session, m *discordgo.MessageCreate) {
	// Ignore own messages
	if m.Author == nil || m.Author.ID == h.botID || m.Author.Bot {
		return
	}

	channel, err := s.Channel(m.ChannelID)
	isDM := err == nil && channel.Type == discordgo.ChannelTypeDM

	isMentioned := false
	for _, user := range m.Mentions {
		if user.ID == h.botID {
			isMentioned = true
			break
		}
	}
	if !isMentioned && !isDM {
		return
	}

	content := h.stripMention(m.Content)
	if content == "" {
		return
	}

	// Check if user is already being processed
	h.processingMu.Lock()
	if h.processingUsers[m.Author.ID] {
		h.processingMu.Unlock()
		return
	}
	h.processingUsers[m.Author.ID] = true
	h.processingMu.Unlock()

	defer func() {
		h.processingMu.Lock()
		delete(h.processingUsers, m.Author.ID)
		h.processingMu.Unlock()
	}()

	profile, history, ok := h.snapshot(m.Author.ID)
	if !ok {
		h.sendSplitMessage(s, m.ChannelID, noPersonaMessage, m.Reference())
		return
	}

	if err := s.ChannelTyping(m.ChannelID); err != nil {
		h.logger.Debug("typing indicator failed", "channel", m.ChannelID, "error", err)
	}

	ctx, cancel := h.requestContext()
	defer cancel()

	reply, err := h.chat.Reply(ctx, profile, m.Author.ID, history, content)
	if err != nil {
		h.logger.Error("generating reply", "user", m.Author.ID, "persona", profile.DisplayName(), "error", err)
		h.sendSplitMessage(s, m.ChannelID, replyErrorText, m.Reference())
		return
	}

	h.appendTurn(m.Author.ID, content, reply)
	h.sendSplitMessage(s, m.ChannelID, reply, m.Reference())
}

// stripMention removes the bot's own mention tokens from a message.
func (h *Handler) stripMention(content string) string {
	if h.botID != "" {
		content = strings.ReplaceAll(content, "<@"+h.botID+">", "")
		content = strings.ReplaceAll(content, "<@!"+h.botID+">", "")
	}
	return strings.TrimSpace(content)
}

// activate makes p the user's active persona. Any unsaved messages from the
// previous persona are saved first.
func (h *Handler) activate(ctx context.Context, userID, personaID string, p persona.Profile) {
	if _, err := h.flushSession(ctx, userID); err != nil {
		h.logger.Error("saving previous session", "user", userID, "error", err)
	}

	h.sessionsMu.Lock()
	h.sessions[userID] = &chatSession{
		personaID:  personaID,
		profile:    p,
		lastActive: h.now(),
	}
	h.sessionsMu.Unlock()
}

// snapshot returns the active persona and a copy of the running history.
func (h *Handler) snapshot(userID string) (persona.Profile, []memory.Message, bool) {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()

	sess, ok := h.sessions[userID]
	if !ok {
		return persona.Profile{}, nil, false
	}
	history := make([]memory.Message, len(sess.messages))
	copy(history, sess.messages)
	return sess.profile, history, true
}

func (h *Handler) appendTurn(userID, userMessage, reply string) {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()

	sess, ok := h.sessions[userID]
	if !ok {
		return
	}
	sess.messages = append(sess.messages,
		memory.Message{Role: memory.RoleUser, Content: userMessage},
		memory.Message{Role: memory.RoleAssistant, Content: reply},
	)
	sess.lastActive = h.now()
}

// flushSession saves the user's unsaved messages as a conversation and
// clears them from the session. The persona stays active. It returns false
// when there was nothing to save.
func (h *Handler) flushSession(ctx context.Context, userID string) (bool, error) {
	h.sessionsMu.Lock()
	sess, ok := h.sessions[userID]
	if !ok || len(sess.messages) == 0 {
		h.sessionsMu.Unlock()
		return false, nil
	}
	profile := sess.profile
	messages := sess.messages
	sess.messages = nil
	h.sessionsMu.Unlock()

	if _, err := h.chat.SaveSession(ctx, profile, userID, messages); err != nil {
		// Put the messages back in front of anything said since.
		h.sessionsMu.Lock()
		if cur, ok := h.sessions[userID]; ok && cur.personaID == sess.personaID {
			cur.messages = append(messages, cur.messages...)
		}
		h.sessionsMu.Unlock()
		return false, err
	}

	h.sessionsMu.Lock()
	if cur, ok := h.sessions[userID]; ok && cur.personaID == sess.personaID {
		cur.learnPending = true
	}
	h.sessionsMu.Unlock()
	return true, nil
}

// resetSession drops the unsaved messages without saving them.
func (h *Handler) resetSession(userID string) bool {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()

	sess, ok := h.sessions[userID]
	if !ok {
		return false
	}
	sess.messages = nil
	sess.lastActive = h.now()
	return true
}

// setProfile replaces the active profile after a learning pass.
func (h *Handler) setProfile(userID, personaID string, p persona.Profile) {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()

	if sess, ok := h.sessions[userID]; ok && sess.personaID == personaID {
		sess.profile = p
	}
}

func (h *Handler) activeSession(userID string) (chatSession, bool) {
	h.sessionsMu.Lock()
	defer h.sessionsMu.Unlock()

	sess, ok := h.sessions[userID]
	if !ok {
		return chatSession{}, false
	}
	return *sess, true
}
