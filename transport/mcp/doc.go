// Package mcp exposes the room server's admin surface as MCP tools.
//
// The package is a thin client: every tool call is proxied to the REST API,
// so the MCP surface and the HTTP surface can never disagree about behavior.
// The server can be mounted over stdio (the "stdio-mcp" run mode) or embedded
// in the HTTP server under /mcp.
//
// Tools:
//   - list_rooms, room_state, room_command
//   - list_clients
//   - pool_state, dispatch_pool
//   - broadcast_text
//
// Usage:
//
//	client := mcp.NewClient("http://localhost:8080")
//	server.ServeStdio(client.Server())
package mcp
