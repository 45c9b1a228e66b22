// Package websocket provides the WebSocket transport for the PlayLab room
// server.
//
// The websocket package implements:
//   - Real-time bidirectional communication
//   - Separate player-facing and admin-facing endpoints
//   - Per-connection read/write pumps with ping/pong keepalive
//   - Connection lifecycle management bound to the channel's client registry
//
// Architecture:
//
// The package uses a hub-and-spoke model where a central Hub tracks all
// live connections. Each connection is handled by a dedicated pair of
// goroutines managing reading, writing, and cleanup. A connection implements
// channel.Sink, so the channel's routers deliver straight into the
// connection's outbound queue.
//
// Message Protocol:
//
// Envelopes are JSON objects {action, target, from, to, data, text}; the
// sender id is taken from the connection, never from the envelope.
//
// Endpoints:
//
// Players connect to /ws, admins and monitors to /ws/admin (monitors add
// ?role=monitor). An optional ?id= query parameter reclaims a previous
// identity after a disconnect; without one a fresh id is minted.
//
// Usage:
//
//	hub := websocket.NewHub(ch)
//	go hub.Run()
//
//	http.HandleFunc("/ws", hub.ServePlayerWS)
//	http.HandleFunc("/ws/admin", hub.ServeAdminWS)
package websocket
