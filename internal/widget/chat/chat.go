// Package chat implements the widget's client engine: a reconciling message
// cache fed by history and realtime pushes, a websocket channel manager with
// bounded reconnect backoff, and an optimistic composer for user actions.
package chat

import "github.com/goamet/chat-widget/internal/widget/api"

// State describes the connection lifecycle of a session.
type State int

const (
	// StateUnresolved means the conversation could not be resolved. Terminal.
	StateUnresolved State = iota
	// StateResolving means the conversation id lookup is in flight.
	StateResolving
	// StateConnecting means the first websocket dial is in progress.
	StateConnecting
	// StateOnline means frames are being received.
	StateOnline
	// StateReconnecting means a dial failed and a retry is scheduled.
	StateReconnecting
	// StateOffline means reconnect attempts were exhausted. Only RetryNow
	// leaves this state.
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateUnresolved:
		return "unresolved"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateOnline:
		return "online"
	case StateReconnecting:
		return "reconnecting"
	case StateOffline:
		return "offline"
	}
	return "unknown"
}

// Level grades user-facing notifications.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Sink receives view updates from a session. Implementations render the
// widget surface; all methods may be called from the session's goroutines.
type Sink interface {
	// UpsertMessage renders or re-renders one message. Calls with a known
	// message id replace the existing rendering in place.
	UpsertMessage(msg api.Message, isMe bool)
	// SetReactions replaces the reaction pill counts for one message.
	SetReactions(msgID string, counts map[string]int)
	// SetConnectionState updates the connection indicator.
	SetConnectionState(state State, attempt int)
	// Notify surfaces a transient or persistent user notification.
	Notify(level Level, text string)
	// ScrollToLatest scrolls the transcript to the newest message.
	ScrollToLatest(animated bool)
}
