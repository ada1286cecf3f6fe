package chat

import "github.com/goamet/chat-widget/internal/widget/api"

// cache holds the session's reconciled message state. It is not safe for
// concurrent use; the owning session serializes access under its mutex.
// Entries are never removed for the lifetime of the session.
type cache struct {
	byID  map[string]api.Message
	order []string
	// mineByID tracks, per message, the emojis this user has reacted with.
	// Populated only by confirmed local toggles and conflict evidence from
	// the backend, never inferred from counts.
	mineByID map[string]map[string]bool
}

func newCache() *cache {
	return &cache{
		byID:     make(map[string]api.Message),
		mineByID: make(map[string]map[string]bool),
	}
}

// upsert stores msg wholesale, preserving the order slot of a known id.
// It reports whether the id was previously unknown.
func (c *cache) upsert(msg api.Message) bool {
	_, known := c.byID[msg.ID]
	c.byID[msg.ID] = msg
	if known {
		return false
	}
	c.order = append(c.order, msg.ID)
	return true
}

// applyReactionDelta adjusts one emoji count on one message, flooring at
// zero. Unknown message ids are ignored.
func (c *cache) applyReactionDelta(msgID, emoji string, delta int) {
	msg, ok := c.byID[msgID]
	if !ok {
		return
	}
	counts := make(map[string]int, len(msg.Reactions)+1)
	for k, v := range msg.Reactions {
		counts[k] = v
	}
	counts[emoji] += delta
	if counts[emoji] <= 0 {
		delete(counts, emoji)
	}
	msg.Reactions = counts
	c.byID[msgID] = msg
}

// setReactions replaces a message's reaction counts with an authoritative
// server snapshot. Unknown message ids are ignored.
func (c *cache) setReactions(msgID string, counts map[string]int) {
	msg, ok := c.byID[msgID]
	if !ok {
		return
	}
	replaced := make(map[string]int, len(counts))
	for k, v := range counts {
		if v > 0 {
			replaced[k] = v
		}
	}
	msg.Reactions = replaced
	c.byID[msgID] = msg
}

// mine reports whether this user has reacted with emoji on the message.
func (c *cache) mine(msgID, emoji string) bool {
	return c.mineByID[msgID][emoji]
}

// setMine records or clears this user's reaction membership for one emoji.
func (c *cache) setMine(msgID, emoji string, present bool) {
	set := c.mineByID[msgID]
	if set == nil {
		if !present {
			return
		}
		set = make(map[string]bool)
		c.mineByID[msgID] = set
	}
	if present {
		set[emoji] = true
		return
	}
	delete(set, emoji)
}

// get returns the cached message for id.
func (c *cache) get(msgID string) (api.Message, bool) {
	msg, ok := c.byID[msgID]
	return msg, ok
}

// snapshot returns the cached messages in chronological insertion order.
func (c *cache) snapshot() []api.Message {
	out := make([]api.Message, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

func (c *cache) len() int {
	return len(c.order)
}
