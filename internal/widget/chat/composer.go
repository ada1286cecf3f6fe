package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/goamet/chat-widget/internal/widget/api"
)

// ErrSendDisabled reports a composer action by a user without send rights.
var ErrSendDisabled = errors.New("chat: sending is disabled")

// ErrScheduleWindow reports a scheduled time outside the allowed window.
var ErrScheduleWindow = errors.New("chat: scheduled time must be in the future and within 30 days")

// scheduleHorizon is the farthest a message may be scheduled ahead.
const scheduleHorizon = 30 * 24 * time.Hour

// tentative applies an optimistic mutation and returns the failure handler
// for the eventual server outcome. Auth failures suppress the revert: the
// login redirect supersedes local state.
func (s *Session) tentative(apply, revert func()) func(error) {
	apply()
	return func(err error) {
		if isAuthErr(err) {
			return
		}
		revert()
	}
}

func isAuthErr(err error) bool {
	var statusErr *api.StatusError
	return errors.As(err, &statusErr) && statusErr.IsAuth()
}

// SetReplyTarget arms the next Send as a threaded reply to msgID. At most
// one target is armed at a time.
func (s *Session) SetReplyTarget(msgID string) {
	s.mu.Lock()
	s.replyTo = msgID
	s.mu.Unlock()
}

// ClearReplyTarget disarms any pending reply target.
func (s *Session) ClearReplyTarget() {
	s.mu.Lock()
	s.replyTo = ""
	s.mu.Unlock()
}

// ReplyTarget returns the armed reply target, empty when none.
func (s *Session) ReplyTarget() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replyTo
}

// Send posts the composer content. Empty or whitespace-only content is a
// no-op with no network call. When a reply target is armed the reply
// endpoint is used and the target is cleared; a failed send restores it so
// the host can retry. The created message renders immediately; the realtime
// echo dedups by id.
func (s *Session) Send(ctx context.Context, content string) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if !s.canSend {
		return ErrSendDisabled
	}
	convID := s.conversationID()

	s.mu.Lock()
	replyTo := s.replyTo
	s.mu.Unlock()
	onErr := s.tentative(
		func() { s.ClearReplyTarget() },
		func() { s.SetReplyTarget(replyTo) },
	)

	var msg api.Message
	var err error
	if replyTo != "" {
		msg, err = s.client.ReplyToMessage(ctx, convID, replyTo, content)
	} else {
		msg, err = s.client.SendMessage(ctx, convID, content)
	}
	if err != nil {
		onErr(err)
		if !isAuthErr(err) {
			s.sink.Notify(LevelError, "message not sent")
		}
		return err
	}

	s.mu.Lock()
	s.cache.upsert(msg)
	s.mu.Unlock()
	s.sink.UpsertMessage(msg, true)
	s.sink.ScrollToLatest(true)
	return nil
}

// ToggleReaction adds or removes the user's emoji reaction on a message.
// The direction is decided by the local membership set, not by counts.
// An add that conflicts server-side records membership and issues exactly
// one corrective delete so both sides converge on absent.
func (s *Session) ToggleReaction(ctx context.Context, msgID, emoji string) error {
	convID := s.conversationID()

	s.mu.Lock()
	removing := s.cache.mine(msgID, emoji)
	s.mu.Unlock()
	if removing {
		return s.removeReaction(ctx, convID, msgID, emoji)
	}
	return s.addReaction(ctx, convID, msgID, emoji)
}

func (s *Session) addReaction(ctx context.Context, convID, msgID, emoji string) error {
	onErr := s.tentative(
		func() { s.applyReaction(msgID, emoji, 1, true) },
		func() { s.applyReaction(msgID, emoji, -1, false) },
	)

	err := s.client.AddReaction(ctx, convID, msgID, emoji)
	if err == nil {
		return nil
	}

	var statusErr *api.StatusError
	if errors.As(err, &statusErr) && statusErr.IsConflict() {
		// The backend already has this reaction: the user toggled it from
		// another tab or before a reload. Undo the optimistic bump, record
		// membership, and remove it once so the toggle lands on absent.
		s.applyReaction(msgID, emoji, -1, true)
		return s.removeReaction(ctx, convID, msgID, emoji)
	}

	onErr(err)
	if !isAuthErr(err) {
		s.sink.Notify(LevelWarn, "reaction not saved")
	}
	return err
}

func (s *Session) removeReaction(ctx context.Context, convID, msgID, emoji string) error {
	onErr := s.tentative(
		func() { s.applyReaction(msgID, emoji, -1, false) },
		func() { s.applyReaction(msgID, emoji, 1, true) },
	)

	if err := s.client.RemoveReaction(ctx, convID, msgID, emoji); err != nil {
		onErr(err)
		if !isAuthErr(err) {
			s.sink.Notify(LevelWarn, "reaction not saved")
		}
		return err
	}
	return nil
}

// applyReaction mutates one emoji count and the membership set, then
// refreshes the view's pills.
func (s *Session) applyReaction(msgID, emoji string, delta int, mine bool) {
	s.mu.Lock()
	s.cache.applyReactionDelta(msgID, emoji, delta)
	s.cache.setMine(msgID, emoji, mine)
	msg, ok := s.cache.get(msgID)
	s.mu.Unlock()
	if ok {
		s.sink.SetReactions(msgID, msg.Reactions)
	}
}

// Vote casts a poll vote. There is no optimistic tally: the realtime push
// is the only authority for vote counts.
func (s *Session) Vote(ctx context.Context, pollID, optionID string) error {
	err := s.client.VotePoll(ctx, s.conversationID(), pollID, optionID)
	if err != nil && !isAuthErr(err) {
		s.sink.Notify(LevelWarn, "vote not recorded")
	}
	return err
}

// CreatePoll posts a new poll. The created message arrives over the
// realtime channel, so nothing renders optimistically.
func (s *Session) CreatePoll(ctx context.Context, question string, options []string) error {
	if !s.canSend {
		return ErrSendDisabled
	}
	if strings.TrimSpace(question) == "" || len(options) < 2 {
		return errors.New("chat: poll needs a question and at least two options")
	}
	err := s.client.CreatePoll(ctx, s.conversationID(), question, options)
	if err != nil && !isAuthErr(err) {
		s.sink.Notify(LevelWarn, "poll not created")
	}
	return err
}

// TogglePin flips a message's pinned flag optimistically, rolling back on
// non-auth failure.
func (s *Session) TogglePin(ctx context.Context, msgID string) error {
	convID := s.conversationID()

	s.mu.Lock()
	msg, ok := s.cache.get(msgID)
	s.mu.Unlock()
	if !ok {
		return errors.New("chat: unknown message")
	}
	pinning := !msg.Pinned

	onErr := s.tentative(
		func() { s.setPinned(msgID, pinning) },
		func() { s.setPinned(msgID, !pinning) },
	)

	var err error
	if pinning {
		err = s.client.PinMessage(ctx, convID, msgID)
	} else {
		err = s.client.UnpinMessage(ctx, convID, msgID)
	}
	if err != nil {
		onErr(err)
		if !isAuthErr(err) {
			s.sink.Notify(LevelWarn, "pin not saved")
		}
		return err
	}
	return nil
}

func (s *Session) setPinned(msgID string, pinned bool) {
	s.mu.Lock()
	msg, ok := s.cache.get(msgID)
	if ok {
		msg.Pinned = pinned
		s.cache.upsert(msg)
	}
	s.mu.Unlock()
	if ok {
		s.sink.UpsertMessage(msg, msg.SenderID == s.userID)
	}
}

// Schedule queues content for future delivery. The window is validated
// locally before any network call: strictly in the future and at most 30
// days ahead.
func (s *Session) Schedule(ctx context.Context, content string, at time.Time) error {
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if !s.canSend {
		return ErrSendDisabled
	}
	now := time.Now()
	if !at.After(now) || at.After(now.Add(scheduleHorizon)) {
		return ErrScheduleWindow
	}

	if err := s.client.ScheduleMessage(ctx, s.conversationID(), content, at); err != nil {
		if !isAuthErr(err) {
			s.sink.Notify(LevelError, "message not scheduled")
		}
		return err
	}
	log.Printf("chat: message scheduled for %s", at.UTC().Format(time.RFC3339))
	s.sink.Notify(LevelInfo, "message scheduled")
	return nil
}
