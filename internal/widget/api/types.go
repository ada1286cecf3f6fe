package api

import "strings"

// Message is a chat message as the backend serializes it. Messages arrive
// newest-first from the history endpoint and singly over the websocket.
type Message struct {
	ID               string         `json:"id"`
	ConversationID   string         `json:"conversation_id"`
	SenderID         string         `json:"sender_id"`
	Content          string         `json:"content"`
	MessageType      string         `json:"message_type"`
	CreatedAt        string         `json:"created_at"`
	ReplyToMessageID string         `json:"reply_to_message_id,omitempty"`
	Reactions        map[string]int `json:"reactions,omitempty"`
	Poll             *Poll          `json:"poll,omitempty"`
	Pinned           bool           `json:"is_pinned"`
}

// Kind normalizes the message type for display. Text messages render their
// content; any other type renders a placeholder label.
func (m Message) Kind() string {
	t := strings.TrimSpace(m.MessageType)
	if t == "" || t == "text" {
		return "text"
	}
	return "(" + t + ")"
}

// Poll is an embedded poll attached to a message.
type Poll struct {
	ID        string       `json:"id"`
	Question  string       `json:"question"`
	Options   []PollOption `json:"options"`
	Anonymous bool         `json:"is_anonymous"`
}

// PollOption is one votable poll entry with its running tally.
type PollOption struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	VoteCount int    `json:"vote_count"`
}

// Ticket is a single-use websocket admission grant.
type Ticket struct {
	Ticket    string `json:"ticket"`
	ExpiresAt string `json:"expires_at"`
	WSURL     string `json:"ws_url"`
}

// UnreadSummary reports the unread message count for a conversation.
type UnreadSummary struct {
	ConversationID string `json:"conversation_id"`
	Count          int    `json:"count"`
}
