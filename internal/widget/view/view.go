// Package view renders the widget surface as safe HTML fragments. Components
// are pure functions of message state, so re-rendering a known message id
// yields a drop-in replacement fragment.
package view

import (
	"context"
	"io"
	"log"
	"sync"

	"github.com/a-h/templ"

	"github.com/goamet/chat-widget/internal/widget/api"
	"github.com/goamet/chat-widget/internal/widget/chat"
)

// Renderer streams rendered fragments to a writer. It implements chat.Sink
// and may be called from the session's goroutines.
type Renderer struct {
	mu     sync.Mutex
	w      io.Writer
	labels labels
}

// New builds a Renderer for the given locale writing fragments to w.
func New(w io.Writer, locale string) *Renderer {
	return &Renderer{w: w, labels: labelsFor(locale)}
}

func (r *Renderer) render(component templ.Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := component.Render(context.Background(), r.w); err != nil {
		log.Printf("view: render: %v", err)
		return
	}
	io.WriteString(r.w, "\n")
}

// UpsertMessage renders a message bubble fragment.
func (r *Renderer) UpsertMessage(msg api.Message, isMe bool) {
	r.render(MessageBubble(msg, isMe, r.labels))
}

// SetReactions renders a replacement reaction strip.
func (r *Renderer) SetReactions(msgID string, counts map[string]int) {
	r.render(ReactionPills(msgID, counts))
}

// SetConnectionState renders the connection indicator.
func (r *Renderer) SetConnectionState(state chat.State, attempt int) {
	r.render(ConnectionStatus(state, attempt, r.labels))
}

// Notify renders a notification banner.
func (r *Renderer) Notify(level chat.Level, text string) {
	r.render(Notification(level, text))
}

// ScrollToLatest emits a scroll directive for the host surface.
func (r *Renderer) ScrollToLatest(animated bool) {
	behavior := "auto"
	if animated {
		behavior = "smooth"
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	io.WriteString(r.w, `<div class="chat-scroll" data-behavior="`+behavior+`"></div>`+"\n")
}
