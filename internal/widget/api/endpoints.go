package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ResolveConversation maps a local conversation id onto the backend's
// canonical conversation id.
func (c *Client) ResolveConversation(ctx context.Context, localID string) (string, error) {
	localID = strings.TrimSpace(localID)
	if localID == "" {
		return "", errors.New("api: local conversation id is required")
	}
	var out struct {
		ChatConversationID string `json:"chat_conversation_id"`
	}
	path := "/api/chat/resolve-conversation?local_conversation_id=" + url.QueryEscape(localID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", err
	}
	if out.ChatConversationID == "" {
		return "", errors.New("api: resolve returned empty conversation id")
	}
	return out.ChatConversationID, nil
}

// ListMessages fetches up to limit messages, newest first.
func (c *Client) ListMessages(ctx context.Context, convID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	var out struct {
		Messages []Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/chat/conversations/%s/messages?limit=%d", url.PathEscape(convID), limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// SendMessage posts a new message and returns the created record.
func (c *Client) SendMessage(ctx context.Context, convID, content string) (Message, error) {
	var out Message
	body := map[string]string{"content": content}
	path := fmt.Sprintf("/api/chat/conversations/%s/messages", url.PathEscape(convID))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

// ReplyToMessage posts a reply threaded under replyID.
func (c *Client) ReplyToMessage(ctx context.Context, convID, replyID, content string) (Message, error) {
	var out Message
	body := map[string]string{"content": content}
	path := fmt.Sprintf("/api/chat/conversations/%s/messages/%s/reply", url.PathEscape(convID), url.PathEscape(replyID))
	if err := c.do(ctx, http.MethodPost, path, body, &out); err != nil {
		return Message{}, err
	}
	return out, nil
}

// WSTicket requests a websocket admission ticket for the conversation.
func (c *Client) WSTicket(ctx context.Context, convID string) (Ticket, error) {
	var out Ticket
	body := map[string]string{"conversation_id": convID}
	if err := c.do(ctx, http.MethodPost, "/api/chat/ws-ticket", body, &out); err != nil {
		return Ticket{}, err
	}
	return out, nil
}

// AddReaction records an emoji reaction by the current user. A conflict
// status means the reaction already exists server-side.
func (c *Client) AddReaction(ctx context.Context, convID, msgID, emoji string) error {
	body := map[string]string{"emoji": emoji}
	path := fmt.Sprintf("/api/chat/conversations/%s/messages/%s/reactions", url.PathEscape(convID), url.PathEscape(msgID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// RemoveReaction deletes the current user's emoji reaction.
func (c *Client) RemoveReaction(ctx context.Context, convID, msgID, emoji string) error {
	path := fmt.Sprintf("/api/chat/conversations/%s/messages/%s/reactions/%s",
		url.PathEscape(convID), url.PathEscape(msgID), url.PathEscape(emoji))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// VotePoll casts a vote for one poll option.
func (c *Client) VotePoll(ctx context.Context, convID, pollID, optionID string) error {
	body := map[string]string{"option_id": optionID}
	path := fmt.Sprintf("/api/chat/conversations/%s/polls/%s/vote", url.PathEscape(convID), url.PathEscape(pollID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// CreatePoll posts a new poll message. The created message arrives over the
// websocket rather than in this response.
func (c *Client) CreatePoll(ctx context.Context, convID, question string, options []string) error {
	body := map[string]any{"question": question, "options": options}
	path := fmt.Sprintf("/api/chat/conversations/%s/polls", url.PathEscape(convID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// ScheduleMessage queues a message for future delivery at the given time,
// transmitted as ISO 8601 UTC.
func (c *Client) ScheduleMessage(ctx context.Context, convID, content string, at time.Time) error {
	body := map[string]string{
		"content":       content,
		"scheduled_for": at.UTC().Format(time.RFC3339),
	}
	path := fmt.Sprintf("/api/chat/conversations/%s/scheduled", url.PathEscape(convID))
	return c.do(ctx, http.MethodPost, path, body, nil)
}

// PinMessage marks a message as pinned in the conversation.
func (c *Client) PinMessage(ctx context.Context, convID, msgID string) error {
	path := fmt.Sprintf("/api/chat/conversations/%s/messages/%s/pin", url.PathEscape(convID), url.PathEscape(msgID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// UnpinMessage clears a message's pinned flag.
func (c *Client) UnpinMessage(ctx context.Context, convID, msgID string) error {
	path := fmt.Sprintf("/api/chat/conversations/%s/messages/%s/pin", url.PathEscape(convID), url.PathEscape(msgID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// UnreadCount fetches the unread message summary for the conversation.
func (c *Client) UnreadCount(ctx context.Context, convID string) (UnreadSummary, error) {
	var out UnreadSummary
	path := fmt.Sprintf("/api/chat/conversations/%s/unread", url.PathEscape(convID))
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return UnreadSummary{}, err
	}
	return out, nil
}
