package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goamet/chat-widget/internal/widget/api"
)

// composerBackend records composer calls and lets tests script per-route
// status codes.
type composerBackend struct {
	mu       sync.Mutex
	requests []string
	status   map[string]int
}

func newComposerSession(t *testing.T, seed []api.Message) (*Session, *recordingSink, *composerBackend) {
	t.Helper()
	backend := &composerBackend{status: make(map[string]int)}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path
		backend.mu.Lock()
		backend.requests = append(backend.requests, key)
		status := backend.status[key]
		backend.mu.Unlock()
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/chat/conversations/conv-1/messages":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(api.Message{ID: "created-1", SenderID: "me", Content: body["content"]})
		case r.Method == http.MethodPost && r.URL.Path == "/api/chat/conversations/conv-1/messages/m1/reply":
			var body map[string]string
			json.NewDecoder(r.Body).Decode(&body)
			json.NewEncoder(w).Encode(api.Message{ID: "reply-1", SenderID: "me", Content: body["content"], ReplyToMessageID: "m1"})
		default:
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)

	client, err := api.New(api.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	sink := newRecordingSink()
	session, err := NewSession(Config{
		Client:              client,
		Sink:                sink,
		LocalConversationID: "local-1",
		UserID:              "me",
		CanSend:             true,
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	session.mu.Lock()
	session.convID = "conv-1"
	for _, msg := range seed {
		session.cache.upsert(msg)
	}
	session.mu.Unlock()
	return session, sink, backend
}

func (b *composerBackend) calls(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, req := range b.requests {
		if req == key {
			n++
		}
	}
	return n
}

func (b *composerBackend) total() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.requests)
}

func (b *composerBackend) setStatus(key string, status int) {
	b.mu.Lock()
	b.status[key] = status
	b.mu.Unlock()
}

func TestSendEmptyContentIsNoOp(t *testing.T) {
	session, _, backend := newComposerSession(t, nil)

	if err := session.Send(context.Background(), "   \n\t"); err != nil {
		t.Fatalf("empty send: %v", err)
	}
	if backend.total() != 0 {
		t.Fatalf("expected no network calls, got %d", backend.total())
	}
}

func TestSendRequiresPermission(t *testing.T) {
	session, _, backend := newComposerSession(t, nil)
	session.canSend = false

	if err := session.Send(context.Background(), "hello"); !errors.Is(err, ErrSendDisabled) {
		t.Fatalf("expected ErrSendDisabled, got %v", err)
	}
	if backend.total() != 0 {
		t.Fatalf("expected no network calls, got %d", backend.total())
	}
}

func TestSendInsertsCreatedMessage(t *testing.T) {
	session, sink, _ := newComposerSession(t, nil)

	if err := session.Send(context.Background(), "hello"); err != nil {
		t.Fatalf("send: %v", err)
	}
	msgs := session.Messages()
	if len(msgs) != 1 || msgs[0].ID != "created-1" {
		t.Fatalf("expected created message cached, got %+v", msgs)
	}
	sink.mu.Lock()
	mine := sink.mine
	sink.mu.Unlock()
	if len(mine) != 1 || !mine[0] {
		t.Fatalf("expected own-message rendering, got %v", mine)
	}
}

func TestSendUsesReplyEndpointAndClearsTarget(t *testing.T) {
	session, _, backend := newComposerSession(t, []api.Message{{ID: "m1", SenderID: "them"}})
	session.SetReplyTarget("m1")

	if err := session.Send(context.Background(), "answer"); err != nil {
		t.Fatalf("send reply: %v", err)
	}
	if backend.calls("POST /api/chat/conversations/conv-1/messages/m1/reply") != 1 {
		t.Fatal("expected reply endpoint")
	}
	if target := session.ReplyTarget(); target != "" {
		t.Fatalf("expected cleared reply target, got %q", target)
	}
}

func TestSendFailureRestoresReplyTarget(t *testing.T) {
	session, sink, backend := newComposerSession(t, []api.Message{{ID: "m1", SenderID: "them"}})
	backend.setStatus("POST /api/chat/conversations/conv-1/messages/m1/reply", http.StatusInternalServerError)
	session.SetReplyTarget("m1")

	if err := session.Send(context.Background(), "answer"); err == nil {
		t.Fatal("expected send failure")
	}
	if target := session.ReplyTarget(); target != "m1" {
		t.Fatalf("expected restored reply target, got %q", target)
	}
	sink.mu.Lock()
	notices := sink.notices
	sink.mu.Unlock()
	if len(notices) != 1 {
		t.Fatalf("expected one failure notice, got %v", notices)
	}
}

func TestToggleReactionAddsAndRemoves(t *testing.T) {
	session, sink, backend := newComposerSession(t, []api.Message{{ID: "m1", SenderID: "them"}})

	if err := session.ToggleReaction(context.Background(), "m1", "👍"); err != nil {
		t.Fatalf("add reaction: %v", err)
	}
	if backend.calls("POST /api/chat/conversations/conv-1/messages/m1/reactions") != 1 {
		t.Fatal("expected add call")
	}
	if counts := sink.reactionCounts("m1"); counts["👍"] != 1 {
		t.Fatalf("expected optimistic count, got %+v", counts)
	}

	if err := session.ToggleReaction(context.Background(), "m1", "👍"); err != nil {
		t.Fatalf("remove reaction: %v", err)
	}
	if backend.calls("DELETE /api/chat/conversations/conv-1/messages/m1/reactions/👍") != 1 {
		t.Fatal("expected remove call")
	}
	if counts := sink.reactionCounts("m1"); counts["👍"] != 0 {
		t.Fatalf("expected cleared count, got %+v", counts)
	}
}

func TestToggleReactionConflictIssuesOneCorrectiveDelete(t *testing.T) {
	session, _, backend := newComposerSession(t, []api.Message{
		{ID: "m1", SenderID: "them", Reactions: map[string]int{"👍": 2}},
	})
	backend.setStatus("POST /api/chat/conversations/conv-1/messages/m1/reactions", http.StatusConflict)

	if err := session.ToggleReaction(context.Background(), "m1", "👍"); err != nil {
		t.Fatalf("toggle with conflict: %v", err)
	}
	if backend.calls("POST /api/chat/conversations/conv-1/messages/m1/reactions") != 1 {
		t.Fatal("expected one add attempt")
	}
	if backend.calls("DELETE /api/chat/conversations/conv-1/messages/m1/reactions/👍") != 1 {
		t.Fatal("expected exactly one corrective delete")
	}

	session.mu.Lock()
	mine := session.cache.mine("m1", "👍")
	msg, _ := session.cache.get("m1")
	session.mu.Unlock()
	if mine {
		t.Fatal("expected final membership absent")
	}
	if msg.Reactions["👍"] != 1 {
		t.Fatalf("expected count reduced to 1, got %d", msg.Reactions["👍"])
	}
}

func TestToggleReactionRollsBackOnServerError(t *testing.T) {
	session, sink, backend := newComposerSession(t, []api.Message{{ID: "m1", SenderID: "them"}})
	backend.setStatus("POST /api/chat/conversations/conv-1/messages/m1/reactions", http.StatusInternalServerError)

	if err := session.ToggleReaction(context.Background(), "m1", "👍"); err == nil {
		t.Fatal("expected failure")
	}
	if counts := sink.reactionCounts("m1"); counts["👍"] != 0 {
		t.Fatalf("expected rolled-back count, got %+v", counts)
	}
	session.mu.Lock()
	mine := session.cache.mine("m1", "👍")
	session.mu.Unlock()
	if mine {
		t.Fatal("expected membership rolled back")
	}
}

func TestToggleReactionAuthFailureSkipsRollback(t *testing.T) {
	session, _, backend := newComposerSession(t, []api.Message{{ID: "m1", SenderID: "them"}})
	backend.setStatus("POST /api/chat/conversations/conv-1/messages/m1/reactions", http.StatusUnauthorized)

	if err := session.ToggleReaction(context.Background(), "m1", "👍"); err == nil {
		t.Fatal("expected auth failure")
	}
	// The redirect supersedes local state; the optimistic bump stays.
	session.mu.Lock()
	msg, _ := session.cache.get("m1")
	session.mu.Unlock()
	if msg.Reactions["👍"] != 1 {
		t.Fatalf("expected optimistic count kept, got %d", msg.Reactions["👍"])
	}
}

func TestVoteDoesNotTouchTally(t *testing.T) {
	session, sink, backend := newComposerSession(t, []api.Message{
		{ID: "m1", SenderID: "them", Poll: &api.Poll{ID: "p1", Options: []api.PollOption{{ID: "o1", VoteCount: 3}}}},
	})

	if err := session.Vote(context.Background(), "p1", "o1"); err != nil {
		t.Fatalf("vote: %v", err)
	}
	if backend.calls("POST /api/chat/conversations/conv-1/polls/p1/vote") != 1 {
		t.Fatal("expected vote call")
	}
	msgs := session.Messages()
	if msgs[0].Poll.Options[0].VoteCount != 3 {
		t.Fatal("expected tally untouched until server push")
	}
	sink.mu.Lock()
	upserts := len(sink.upserts)
	sink.mu.Unlock()
	if upserts != 0 {
		t.Fatal("expected no optimistic render for vote")
	}
}

func TestVoteFailureNotifies(t *testing.T) {
	session, sink, backend := newComposerSession(t, nil)
	backend.setStatus("POST /api/chat/conversations/conv-1/polls/p1/vote", http.StatusInternalServerError)

	if err := session.Vote(context.Background(), "p1", "o1"); err == nil {
		t.Fatal("expected failure")
	}
	sink.mu.Lock()
	notices := sink.notices
	sink.mu.Unlock()
	if len(notices) != 1 {
		t.Fatalf("expected one notice, got %v", notices)
	}
}

func TestCreatePollValidatesInput(t *testing.T) {
	session, _, backend := newComposerSession(t, nil)

	if err := session.CreatePoll(context.Background(), " ", []string{"a", "b"}); err == nil {
		t.Fatal("expected question validation error")
	}
	if err := session.CreatePoll(context.Background(), "q", []string{"only"}); err == nil {
		t.Fatal("expected options validation error")
	}
	if backend.total() != 0 {
		t.Fatalf("expected no network calls, got %d", backend.total())
	}

	if err := session.CreatePoll(context.Background(), "q", []string{"a", "b"}); err != nil {
		t.Fatalf("create poll: %v", err)
	}
	if backend.calls("POST /api/chat/conversations/conv-1/polls") != 1 {
		t.Fatal("expected poll creation call")
	}
	// No optimistic insert; the realtime push delivers the message.
	if len(session.Messages()) != 0 {
		t.Fatal("expected no cached message before the push")
	}
}

func TestTogglePinOptimisticWithRollback(t *testing.T) {
	session, _, backend := newComposerSession(t, []api.Message{{ID: "m1", SenderID: "them"}})

	if err := session.TogglePin(context.Background(), "m1"); err != nil {
		t.Fatalf("pin: %v", err)
	}
	if backend.calls("POST /api/chat/conversations/conv-1/messages/m1/pin") != 1 {
		t.Fatal("expected pin call")
	}
	msgs := session.Messages()
	if !msgs[0].Pinned {
		t.Fatal("expected pinned flag set")
	}

	backend.setStatus("DELETE /api/chat/conversations/conv-1/messages/m1/pin", http.StatusInternalServerError)
	if err := session.TogglePin(context.Background(), "m1"); err == nil {
		t.Fatal("expected unpin failure")
	}
	msgs = session.Messages()
	if !msgs[0].Pinned {
		t.Fatal("expected pinned flag rolled back")
	}
}

func TestScheduleWindowRejectedLocally(t *testing.T) {
	session, _, backend := newComposerSession(t, nil)

	cases := []struct {
		name string
		at   time.Time
	}{
		{name: "past", at: time.Now().Add(-time.Minute)},
		{name: "now", at: time.Now()},
		{name: "beyond horizon", at: time.Now().Add(scheduleHorizon + time.Hour)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := session.Schedule(context.Background(), "later", tc.at); !errors.Is(err, ErrScheduleWindow) {
				t.Fatalf("expected ErrScheduleWindow, got %v", err)
			}
		})
	}
	if backend.total() != 0 {
		t.Fatalf("expected no network calls, got %d", backend.total())
	}
}

func TestScheduleSuccessNotifies(t *testing.T) {
	session, sink, backend := newComposerSession(t, nil)

	if err := session.Schedule(context.Background(), "later", time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	if backend.calls("POST /api/chat/conversations/conv-1/scheduled") != 1 {
		t.Fatal("expected schedule call")
	}
	sink.mu.Lock()
	notices := sink.notices
	sink.mu.Unlock()
	if len(notices) != 1 || notices[0] != "info:message scheduled" {
		t.Fatalf("expected confirmation notice, got %v", notices)
	}
}
