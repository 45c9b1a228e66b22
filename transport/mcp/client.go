package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Client is a thin MCP client that proxies to the REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	mcpServer  *server.MCPServer
}

// NewClient creates a new MCP client that calls the REST API.
func NewClient(baseURL string) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}

	c.initMCPServer()
	return c
}

// Server exposes the underlying MCP server for stdio or HTTP embedding.
func (c *Client) Server() *server.MCPServer {
	return c.mcpServer
}

// initMCPServer initializes the MCP server with all tools.
func (c *Client) initMCPServer() {
	c.mcpServer = server.NewMCPServer(
		"PlayLab Room Server",
		"1.0.0",
		server.WithToolCapabilities(true),
		server.WithInstructions(`PlayLab Room Server - MCP Interface

This is a thin client that proxies all requests to the REST API server.

The server runs browser-based multiplayer games for research: players wait in
a pool until a dispatch policy fires, then matched players are moved into a
game room whose state machine (start/pause/resume/stop) admins drive remotely.

AVAILABLE TOOLS:
- list_rooms: List all live rooms with type, state, and membership
- room_state: Get a single room snapshot
- room_command: Drive a room's state machine (start/pause/resume/stop)
- list_clients: List the client roster (players, admins, monitors)
- pool_state: Inspect the default waiting pool
- dispatch_pool: Force-dispatch the currently waiting players
- broadcast_text: Send a plain-text notice to every player`),
	)

	c.registerTools()
}

// registerTools registers all MCP tools.
func (c *Client) registerTools() {
	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List all live rooms with type, lifecycle state, and membership",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListRooms)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_state",
		Description: "Get the snapshot of a specific room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID to retrieve",
				},
			},
			Required: []string{"room_id"},
		},
	}, c.handleRoomState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "room_command",
		Description: "Drive a room's state machine. Redundant commands are tolerated (logged no-op).",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID",
				},
				"command": map[string]interface{}{
					"type":        "string",
					"enum":        []string{"start", "pause", "resume", "stop"},
					"description": "State machine command",
				},
				"to_players": map[string]interface{}{
					"type":        "boolean",
					"description": "Also send the command to every player client in the room",
				},
			},
			Required: []string{"room_id", "command"},
		},
	}, c.handleRoomCommand)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "list_clients",
		Description: "List the client roster: players, admins, and monitors with connection state",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleListClients)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "pool_state",
		Description: "Inspect the default waiting pool",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handlePoolState)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "dispatch_pool",
		Description: "Force-dispatch the currently waiting players into a new game room",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, c.handleDispatchPool)

	c.mcpServer.AddTool(mcp.Tool{
		Name:        "broadcast_text",
		Description: "Send a plain-text notice to every connected player",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"text": map[string]interface{}{
					"type":        "string",
					"description": "Notice text",
				},
			},
			Required: []string{"text"},
		},
	}, c.handleBroadcastText)
}

// Tool handlers

func (c *Client) handleListRooms(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.proxyGet(ctx, "/api/rooms")
}

func (c *Client) handleRoomState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}
	return c.proxyGet(ctx, "/api/rooms/"+roomID)
}

func (c *Client) handleRoomCommand(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	command, _ := args["command"].(string)
	if roomID == "" || command == "" {
		return mcp.NewToolResultError("room_id and command are required"), nil
	}
	toPlayers, _ := args["to_players"].(bool)
	body := map[string]interface{}{
		"command":    command,
		"to_players": toPlayers,
	}
	return c.proxyPost(ctx, "/api/rooms/"+roomID+"/command", body)
}

func (c *Client) handleListClients(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.proxyGet(ctx, "/api/clients")
}

func (c *Client) handlePoolState(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.proxyGet(ctx, "/api/pool")
}

func (c *Client) handleDispatchPool(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return c.proxyPost(ctx, "/api/pool/dispatch", map[string]interface{}{})
}

func (c *Client) handleBroadcastText(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := req.Params.Arguments.(map[string]interface{})
	text, _ := args["text"].(string)
	if text == "" {
		return mcp.NewToolResultError("text is required"), nil
	}
	return c.proxyPost(ctx, "/api/broadcast", map[string]interface{}{"text": text})
}

// HTTP proxy helpers

func (c *Client) proxyGet(ctx context.Context, path string) (*mcp.CallToolResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return c.do(req)
}

func (c *Client) proxyPost(ctx context.Context, path string, body interface{}) (*mcp.CallToolResult, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*mcp.CallToolResult, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("API request failed: %v", err)), nil
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("reading API response: %v", err)), nil
	}

	if resp.StatusCode >= 400 {
		return mcp.NewToolResultError(fmt.Sprintf("API error %d: %s", resp.StatusCode, data)), nil
	}
	if len(data) == 0 {
		return mcp.NewToolResultText("ok"), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
