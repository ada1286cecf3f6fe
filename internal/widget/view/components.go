package view

import (
	"context"
	"fmt"
	"html"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"

	"github.com/goamet/chat-widget/internal/widget/api"
	"github.com/goamet/chat-widget/internal/widget/chat"
)

// MessageBubble renders one message as an HTML fragment. Rendering the same
// message id again produces a replacement fragment for in-place swapping.
// All user content passes through html.EscapeString.
func MessageBubble(msg api.Message, isMe bool, l labels) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		align := "chat-message-theirs"
		if isMe {
			align = "chat-message-mine"
		}

		var b strings.Builder
		b.WriteString(`<div class="chat-message ` + align + `" data-message-id="` + html.EscapeString(msg.ID) + `">`)
		if msg.Pinned {
			b.WriteString(`<span class="chat-pin">` + html.EscapeString(l.Pinned) + `</span>`)
		}
		if msg.ReplyToMessageID != "" {
			b.WriteString(`<span class="chat-reply-ref" data-reply-to="` + html.EscapeString(msg.ReplyToMessageID) + `">` + html.EscapeString(l.ReplyingTo) + `</span>`)
		}

		if kind := msg.Kind(); kind == "text" {
			b.WriteString(`<p class="chat-body">` + html.EscapeString(msg.Content) + `</p>`)
		} else {
			b.WriteString(`<p class="chat-body chat-body-placeholder">` + html.EscapeString(kind) + `</p>`)
		}

		if msg.Poll != nil {
			if err := renderPoll(&b, *msg.Poll, l); err != nil {
				return err
			}
		}
		renderReactionPills(&b, msg.Reactions)

		b.WriteString(`<time datetime="` + html.EscapeString(msg.CreatedAt) + `">` + html.EscapeString(msg.CreatedAt) + `</time>`)
		b.WriteString(`</div>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ReactionPills renders the reaction strip for one message for in-place
// replacement after a count change.
func ReactionPills(msgID string, counts map[string]int) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="chat-reactions" data-message-id="` + html.EscapeString(msgID) + `">`)
		var inner strings.Builder
		renderReactionPills(&inner, counts)
		b.WriteString(inner.String())
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// ConnectionStatus renders the connection indicator, including the manual
// retry control once reconnect attempts are exhausted.
func ConnectionStatus(state chat.State, attempt int, l labels) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="chat-status chat-status-` + state.String() + `">`)
		switch state {
		case chat.StateOnline:
			b.WriteString(html.EscapeString(l.Online))
		case chat.StateConnecting, chat.StateResolving:
			b.WriteString(html.EscapeString(l.Connecting))
		case chat.StateReconnecting:
			b.WriteString(html.EscapeString(l.Reconnecting))
		case chat.StateUnresolved:
			b.WriteString(html.EscapeString(l.Unresolved))
		case chat.StateOffline:
			b.WriteString(html.EscapeString(l.ConnectionLost))
			b.WriteString(`<button class="chat-retry" type="button">` + html.EscapeString(l.Retry) + `</button>`)
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// Notification renders a transient or persistent banner.
func Notification(level chat.Level, text string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		fragment := `<div class="chat-notice chat-notice-` + level.String() + `">` + html.EscapeString(text) + `</div>`
		_, err := io.WriteString(w, fragment)
		return err
	})
}

func renderPoll(b *strings.Builder, poll api.Poll, l labels) error {
	b.WriteString(`<div class="chat-poll" data-poll-id="` + html.EscapeString(poll.ID) + `">`)
	b.WriteString(`<p class="chat-poll-question">` + html.EscapeString(poll.Question) + `</p>`)
	b.WriteString(`<ul>`)
	for _, option := range poll.Options {
		b.WriteString(`<li data-option-id="` + html.EscapeString(option.ID) + `">`)
		b.WriteString(html.EscapeString(option.Text))
		fmt.Fprintf(b, ` <span class="chat-poll-count">%d %s</span>`, option.VoteCount, html.EscapeString(l.Votes))
		b.WriteString(`</li>`)
	}
	b.WriteString(`</ul></div>`)
	return nil
}

func renderReactionPills(b *strings.Builder, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	emojis := make([]string, 0, len(counts))
	for emoji, count := range counts {
		if count > 0 {
			emojis = append(emojis, emoji)
		}
	}
	sort.Strings(emojis)
	for _, emoji := range emojis {
		fmt.Fprintf(b, `<span class="chat-reaction-pill" data-emoji="%s">%s %d</span>`,
			html.EscapeString(emoji), html.EscapeString(emoji), counts[emoji])
	}
}
