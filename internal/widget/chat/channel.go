package chat

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/net/websocket"

	"github.com/goamet/chat-widget/internal/platform/timeouts"
	"github.com/goamet/chat-widget/internal/widget/api"
)

const (
	// backoffBase is the first reconnect delay; each attempt doubles it.
	backoffBase = time.Second
	// backoffCap bounds the unjittered reconnect delay.
	backoffCap = 30 * time.Second
	// backoffJitter spreads each delay uniformly across ±20%.
	backoffJitter = 0.2
	// maxDialAttempts bounds reconnect attempts before going offline.
	maxDialAttempts = 10
	// ticketExpiryWarning logs tickets that are close to expiring.
	ticketExpiryWarning = 10 * time.Second
)

// newReconnectBackoff builds the reconnect delay schedule: backoffBase
// doubling per attempt up to backoffCap, jittered by backoffJitter. The
// attempt budget is enforced by the channel, not the schedule.
func newReconnectBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffBase
	b.Multiplier = 2
	b.MaxInterval = backoffCap
	b.RandomizationFactor = backoffJitter
	return b
}

// frame is one realtime push. Unknown types and partially-filled payloads
// are ignored by the dispatcher.
type frame struct {
	Type      string         `json:"type"`
	Message   *api.Message   `json:"message,omitempty"`
	MessageID string         `json:"message_id,omitempty"`
	Reactions map[string]int `json:"reactions,omitempty"`
}

// channel maintains the realtime websocket: ticket fetch, dial, read pump,
// and bounded reconnect backoff. All view effects route through callbacks
// owned by the session.
type channel struct {
	ticket      func(ctx context.Context) (api.Ticket, error)
	origin      string
	onFrame     func(frame)
	onState     func(State, int)
	notify      func(Level, string)
	dialTimeout time.Duration
	delays      *backoff.ExponentialBackOff

	mu      sync.Mutex
	conn    *websocket.Conn
	attempt int

	retry chan struct{}
	done  chan struct{}
}

func newChannel(ticket func(ctx context.Context) (api.Ticket, error), origin string, onFrame func(frame), onState func(State, int), notify func(Level, string)) *channel {
	if strings.TrimSpace(origin) == "" {
		origin = "http://localhost"
	}
	return &channel{
		ticket:      ticket,
		origin:      origin,
		onFrame:     onFrame,
		onState:     onState,
		notify:      notify,
		dialTimeout: timeouts.WSDial,
		delays:      newReconnectBackoff(),
		retry:       make(chan struct{}, 1),
		done:        make(chan struct{}),
	}
}

// run drives the connect/read/reconnect loop until ctx is cancelled.
func (c *channel) run(ctx context.Context) {
	defer close(c.done)
	for {
		if ctx.Err() != nil {
			return
		}
		if c.attempt == 0 {
			c.onState(StateConnecting, 0)
		} else {
			c.onState(StateReconnecting, c.attempt)
		}

		ticket, err := c.ticket(ctx)
		if err != nil {
			log.Printf("chat: ws ticket: %v", err)
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}
		if strings.TrimSpace(ticket.WSURL) == "" {
			log.Printf("chat: ws ticket missing url")
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}
		logTicketExpiry(ticket)

		conn, err := c.dial(dialURL(ticket))
		if err != nil {
			log.Printf("chat: ws dial: %v", err)
			if !c.waitReconnect(ctx) {
				return
			}
			continue
		}

		c.setConn(conn)
		c.resetBudget()
		c.onState(StateOnline, 0)

		pumpDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-pumpDone:
			}
		}()
		c.readPump(conn)
		close(pumpDone)
		c.setConn(nil)
		conn.Close()

		if ctx.Err() != nil {
			return
		}
		if !c.waitReconnect(ctx) {
			return
		}
	}
}

// dial opens the websocket with the dial deadline covering the TCP
// connect, the TLS exchange, and the handshake. A peer that accepts the
// socket but never answers falls into the normal reconnect path instead
// of wedging the run loop.
func (c *channel) dial(rawURL string) (*websocket.Conn, error) {
	config, err := websocket.NewConfig(rawURL, c.origin)
	if err != nil {
		return nil, fmt.Errorf("ws config: %w", err)
	}

	netConn, err := net.DialTimeout("tcp", wsHostPort(config.Location), c.dialTimeout)
	if err != nil {
		return nil, err
	}
	if config.Location.Scheme == "wss" {
		netConn = tls.Client(netConn, &tls.Config{ServerName: config.Location.Hostname()})
	}
	netConn.SetDeadline(time.Now().Add(c.dialTimeout))

	conn, err := websocket.NewClient(config, netConn)
	if err != nil {
		netConn.Close()
		return nil, fmt.Errorf("ws handshake: %w", err)
	}
	netConn.SetDeadline(time.Time{})
	return conn, nil
}

// wsHostPort resolves the dial address for a websocket location.
func wsHostPort(u *url.URL) string {
	if u.Port() != "" {
		return u.Host
	}
	if u.Scheme == "wss" {
		return u.Host + ":443"
	}
	return u.Host + ":80"
}

// readPump decodes frames until the transport fails. Malformed payloads are
// dropped without disturbing the connection.
func (c *channel) readPump(conn *websocket.Conn) {
	for {
		var raw string
		if err := websocket.Message.Receive(conn, &raw); err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal([]byte(raw), &f); err != nil {
			continue
		}
		if strings.TrimSpace(f.Type) == "" {
			continue
		}
		c.onFrame(f)
	}
}

// waitReconnect sleeps the backoff delay for the next attempt. After the
// attempt budget is spent it parks in the offline state until RetryNow.
// It reports false when ctx ended.
func (c *channel) waitReconnect(ctx context.Context) bool {
	c.attempt++
	if c.attempt > maxDialAttempts {
		c.onState(StateOffline, maxDialAttempts)
		c.notify(LevelError, "chat connection lost")
		select {
		case <-ctx.Done():
			return false
		case <-c.retry:
			c.resetBudget()
			return true
		}
	}

	timer := time.NewTimer(c.delays.NextBackOff())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-c.retry:
		c.resetBudget()
		return true
	case <-timer.C:
		return true
	}
}

// resetBudget restores the full attempt budget and delay schedule.
func (c *channel) resetBudget() {
	c.attempt = 0
	c.delays.Reset()
}

// retryNow requests an immediate reconnect with a fresh attempt budget.
func (c *channel) retryNow() {
	select {
	case c.retry <- struct{}{}:
	default:
	}
}

func (c *channel) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

// close tears down any open connection so the read pump unblocks.
func (c *channel) close() {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Close()
	}
}

// dialURL appends the admission ticket to the advertised websocket URL.
func dialURL(t api.Ticket) string {
	sep := "?"
	if strings.Contains(t.WSURL, "?") {
		sep = "&"
	}
	return t.WSURL + sep + "ticket=" + url.QueryEscape(t.Ticket)
}

// logTicketExpiry inspects the ticket's JWT expiry claim without verifying
// the signature and logs when the ticket is close to expiring.
func logTicketExpiry(t api.Ticket) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(t.Ticket, claims); err != nil {
		return
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return
	}
	if until := time.Until(exp.Time); until < ticketExpiryWarning {
		log.Printf("chat: ws ticket expires in %s", until.Round(time.Second))
	}
}
