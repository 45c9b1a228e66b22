// Package api provides the HTTP REST API for the PlayLab room server.
//
// The api package implements:
//   - RESTful endpoints for room inspection and lifecycle commands
//   - Client roster inspection and administrative purge
//   - Waiting-pool inspection and manual dispatch
//   - Operator text broadcast to players
//   - WebSocket upgrade handling (player and admin endpoints)
//
// Endpoints:
//
// Rooms:
//   - GET    /api/rooms              - List rooms
//   - GET    /api/rooms/{id}         - Get a room snapshot
//   - DELETE /api/rooms/{id}         - Destroy a room (idempotent)
//   - POST   /api/rooms/{id}/command - Drive the room state machine
//
// Clients:
//   - GET    /api/clients      - List the roster
//   - GET    /api/clients/{id} - Get one client
//   - DELETE /api/clients/{id} - Purge a client record
//
// Pool:
//   - GET  /api/pool          - Inspect the default waiting pool
//   - POST /api/pool/dispatch - Force a dispatch of connected members
//
// Broadcast:
//   - POST /api/broadcast - Send a text notice to every player
//
// Request/Response Format:
//
// All endpoints accept and return JSON. Room commands are sent as POST with a
// JSON body:
//
//	{
//	  "command": "start|pause|resume|stop",
//	  "to_players": true|false
//	}
//
// A command whose state-machine guard fails still returns 202: redundant
// admin commands are tolerated and logged, never surfaced as hard failures.
//
// Error Handling:
//
// Errors are returned as JSON with appropriate HTTP status codes:
//
//	{
//	  "error": "error message"
//	}
package api
