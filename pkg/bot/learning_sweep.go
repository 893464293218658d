package bot

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"personabot/pkg/learning"
)

var errNoActivePersona = errors.New("no active persona")

// learningSweep periodically runs the learning pass for every user whose
// active persona has conversations saved since its last pass.
func (h *Handler) learningSweep(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.runLearningSweep(ctx)
		}
	}
}

func (h *Handler) runLearningSweep(ctx context.Context) {
	h.sessionsMu.Lock()
	users := make([]string, 0, len(h.sessions))
	for userID, sess := range h.sessions {
		if sess.personaID != "" && sess.learnPending {
			users = append(users, userID)
		}
	}
	h.sessionsMu.Unlock()

	if len(users) == 0 {
		h.logger.Debug("no new conversations to learn from")
		return
	}

	h.logger.Info("starting learning sweep", "users", len(users))
	updated := 0
	for _, userID := range users {
		if ctx.Err() != nil {
			return
		}
		result, changed, err := h.learnSaved(ctx, userID)
		if err != nil {
			h.logger.Error("learning sweep", "user", userID, "error", err)
			continue
		}
		if !result.OK() {
			h.logger.Debug("learning skipped", "user", userID, "reason", result.Failure.Kind)
			continue
		}
		if changed {
			updated++
		}
	}
	h.logger.Info("learning sweep complete", "users", len(users), "updated", updated)
}

// learnFor saves the user's pending messages, analyses the persona's saved
// conversations and persists the learned profile when it changed.
func (h *Handler) learnFor(ctx context.Context, userID string) (learning.Result, bool, error) {
	if _, err := h.flushSession(ctx, userID); err != nil {
		return learning.Result{}, false, errors.Wrap(err, "saving session before learning")
	}
	return h.learnSaved(ctx, userID)
}

// learnSaved runs the learning pass over what is already saved. Unsaved
// messages in the running session are left alone.
func (h *Handler) learnSaved(ctx context.Context, userID string) (learning.Result, bool, error) {
	h.sessionsMu.Lock()
	cur, ok := h.sessions[userID]
	if !ok {
		h.sessionsMu.Unlock()
		return learning.Result{}, false, errNoActivePersona
	}
	cur.learnPending = false
	sess := *cur
	h.sessionsMu.Unlock()

	result, updated, changed := h.chat.Learn(ctx, sess.profile, userID)
	if !changed {
		return result, false, nil
	}

	if err := h.personas.UpdatePersona(ctx, sess.personaID, updated); err != nil {
		return result, false, errors.Wrapf(err, "updating persona %s", sess.personaID)
	}
	h.setProfile(userID, sess.personaID, updated)
	return result, true, nil
}
