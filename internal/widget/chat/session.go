package chat

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/goamet/chat-widget/internal/platform/timeouts"
	"github.com/goamet/chat-widget/internal/widget/api"
)

// ErrUnresolved reports that the conversation lookup failed. The session is
// terminal after this; no history load or connect is attempted.
var ErrUnresolved = errors.New("chat: conversation unresolved")

const defaultHistoryLimit = 50

// Config holds the host-provided session parameters. The host page supplies
// the local conversation id, the current user id, and the send permission.
type Config struct {
	Client *api.Client
	Sink   Sink
	// LocalConversationID is the host-side id resolved into the backend's
	// canonical conversation id on Start.
	LocalConversationID string
	UserID              string
	CanSend             bool
	// Origin is the websocket handshake origin. Defaults to localhost.
	Origin string
	// HistoryLimit bounds the initial load. Defaults to 50.
	HistoryLimit int
	// OnLoginRedirect, when set, runs once after an auth failure, delayed
	// by a short grace so the notification stays visible.
	OnLoginRedirect func()
}

// Session is the page-load-scoped chat controller. One Session resolves its
// conversation once, keeps the message cache reconciled with pushes, and
// performs composer actions. It is not restartable; a new page load builds
// a new Session.
type Session struct {
	client       *api.Client
	sink         Sink
	localConvID  string
	userID       string
	canSend      bool
	origin       string
	historyLimit int

	mu      sync.Mutex
	convID  string
	cache   *cache
	replyTo string

	authNotice sync.Once
	redirect   func()

	channel *channel
	cancel  context.CancelFunc
}

// NewSession validates cfg and builds an idle session.
func NewSession(cfg Config) (*Session, error) {
	if cfg.Client == nil {
		return nil, errors.New("chat: api client is required")
	}
	if cfg.Sink == nil {
		return nil, errors.New("chat: sink is required")
	}
	if cfg.LocalConversationID == "" {
		return nil, errors.New("chat: local conversation id is required")
	}
	limit := cfg.HistoryLimit
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	s := &Session{
		client:       cfg.Client,
		sink:         cfg.Sink,
		localConvID:  cfg.LocalConversationID,
		userID:       cfg.UserID,
		canSend:      cfg.CanSend,
		origin:       cfg.Origin,
		historyLimit: limit,
		redirect:     cfg.OnLoginRedirect,
		cache:        newCache(),
	}
	s.client.OnAuthFailure = s.handleAuthFailure
	return s, nil
}

// Start resolves the conversation, loads history, and starts the realtime
// channel. Resolution gets exactly one attempt; on failure the session is
// left unresolved with no further network activity.
func (s *Session) Start(ctx context.Context) error {
	s.sink.SetConnectionState(StateResolving, 0)

	convID, err := s.client.ResolveConversation(ctx, s.localConvID)
	if err != nil {
		s.sink.SetConnectionState(StateUnresolved, 0)
		s.sink.Notify(LevelError, "chat unavailable")
		return errors.Join(ErrUnresolved, err)
	}
	s.mu.Lock()
	s.convID = convID
	s.mu.Unlock()

	s.loadHistory(ctx, convID)
	s.loadUnread(ctx, convID)

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.channel = newChannel(
		func(ctx context.Context) (api.Ticket, error) { return s.client.WSTicket(ctx, convID) },
		s.origin,
		s.handleFrame,
		s.sink.SetConnectionState,
		s.sink.Notify,
	)
	go s.channel.run(runCtx)
	return nil
}

// loadHistory fetches the newest page of messages and renders it in
// chronological order. One attempt; a failure leaves the view untouched.
func (s *Session) loadHistory(ctx context.Context, convID string) {
	msgs, err := s.client.ListMessages(ctx, convID, s.historyLimit)
	if err != nil {
		log.Printf("chat: load history: %v", err)
		s.sink.Notify(LevelWarn, "could not load messages")
		return
	}

	// The wire order is newest first.
	s.mu.Lock()
	for i := len(msgs) - 1; i >= 0; i-- {
		s.cache.upsert(msgs[i])
	}
	ordered := s.cache.snapshot()
	s.mu.Unlock()

	for _, msg := range ordered {
		s.sink.UpsertMessage(msg, msg.SenderID == s.userID)
	}
	s.sink.ScrollToLatest(false)
}

// loadUnread fetches the unread badge count. Best effort.
func (s *Session) loadUnread(ctx context.Context, convID string) {
	summary, err := s.client.UnreadCount(ctx, convID)
	if err != nil {
		log.Printf("chat: unread count: %v", err)
		return
	}
	if summary.Count > 0 {
		log.Printf("chat: %d unread messages", summary.Count)
	}
}

// RetryNow restarts connection attempts after the channel went offline.
func (s *Session) RetryNow() {
	if s.channel != nil {
		s.channel.retryNow()
	}
}

// Close tears down the realtime channel and waits for the pump to stop.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.channel != nil {
		s.channel.close()
		<-s.channel.done
	}
}

// handleFrame reconciles one realtime push into the cache and the view.
// Frames missing their payload are dropped.
func (s *Session) handleFrame(f frame) {
	switch f.Type {
	case "new_message", "message_updated":
		if f.Message == nil || f.Message.ID == "" {
			return
		}
		s.mu.Lock()
		isNew := s.cache.upsert(*f.Message)
		s.mu.Unlock()
		s.sink.UpsertMessage(*f.Message, f.Message.SenderID == s.userID)
		if isNew && f.Type == "new_message" {
			s.sink.ScrollToLatest(true)
		}
	case "reaction_added", "reaction_removed":
		if f.MessageID == "" || f.Reactions == nil {
			return
		}
		s.mu.Lock()
		s.cache.setReactions(f.MessageID, f.Reactions)
		msg, ok := s.cache.get(f.MessageID)
		s.mu.Unlock()
		if !ok {
			return
		}
		s.sink.SetReactions(f.MessageID, msg.Reactions)
	}
}

// handleAuthFailure runs once per session: the login redirect supersedes any
// in-flight optimistic state, so no rollback accompanies it.
func (s *Session) handleAuthFailure() {
	s.authNotice.Do(func() {
		s.sink.Notify(LevelError, "session expired")
		log.Printf("chat: auth failure, login redirect pending")
		if s.redirect != nil {
			time.AfterFunc(timeouts.AuthRedirectGrace, s.redirect)
		}
	})
}

// conversationID returns the resolved conversation id.
func (s *Session) conversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.convID
}

// Messages returns the cached transcript in chronological order.
func (s *Session) Messages() []api.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.snapshot()
}
