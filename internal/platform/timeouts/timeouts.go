// Package timeouts defines shared timeout constants used across the widget.
// Centralizing these values prevents drift between components and makes the
// durations discoverable.
package timeouts

import "time"

// HTTPRequest caps the wait time for a single chat API request.
const HTTPRequest = 10 * time.Second

// WSDial caps the wait time when opening the realtime websocket.
const WSDial = 10 * time.Second

// Shutdown limits how long the widget waits for in-flight work during
// graceful shutdown.
const Shutdown = 5 * time.Second

// AuthRedirectGrace delays the login redirect after an auth failure so the
// notification remains visible.
const AuthRedirectGrace = 1500 * time.Millisecond
