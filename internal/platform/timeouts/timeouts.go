// Package timeouts defines shared timeout constants used by the battle
// server and its websocket sessions.
package timeouts

import "time"

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 10 * time.Second

// WebSocketWrite caps a single websocket frame write.
const WebSocketWrite = 5 * time.Second

// WebSocketHandshake caps the websocket upgrade handshake.
const WebSocketHandshake = 10 * time.Second
