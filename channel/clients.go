package channel

import (
	"errors"
	"log"
	"sync"
	"time"
)

var (
	ErrDuplicateClient = errors.New("client id already connected")
	ErrClientNotFound  = errors.New("client not found")
)

// Role classifies a connection for routing policy purposes.
type Role string

const (
	RolePlayer  Role = "player"
	RoleAdmin   Role = "admin"
	RoleMonitor Role = "monitor"
	RoleLogic   Role = "logic"
)

// ConnState is a client's connection state. Disconnected clients are kept in
// the registry so a later HI_AGAIN can be matched to the original identity.
type ConnState string

const (
	StateConnected    ConnState = "connected"
	StateDisconnected ConnState = "disconnected"
)

// Sink is the transport-attached outbound side of a client connection.
type Sink interface {
	Send(msg Message) error
	Close() error
}

// Client is a connected (or previously connected) endpoint. Clients are owned
// exclusively by the ClientRegistry; rooms only index membership.
type Client struct {
	ID    string
	Role  Role
	State ConnState

	// RoomID is the client's current room. A client belongs to at most one
	// room at a time.
	RoomID string

	// Synced reports whether the client has confirmed the current game state.
	// Updated on SAY.STATE from the client, consulted by checkSync.
	Synced bool

	// GameState is the last state payload the client reported.
	GameState []byte

	Sink        Sink
	ConnectedAt time.Time
}

// ClientRegistry tracks every client the server has ever seen, keyed by id.
// It is safe for concurrent use.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewClientRegistry creates an empty client registry.
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients: make(map[string]*Client),
	}
}

// Register adds a new client or revives a disconnected one. Registering an id
// that is currently connected fails with ErrDuplicateClient. Reviving flips
// the state back to connected and swaps in the new sink; the rest of the
// client record (room, sync state) survives the reconnection.
func (r *ClientRegistry) Register(id string, role Role, sink Sink) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.clients[id]; ok {
		if existing.State == StateConnected {
			return nil, ErrDuplicateClient
		}
		existing.State = StateConnected
		existing.Sink = sink
		existing.ConnectedAt = time.Now()
		return existing, nil
	}

	client := &Client{
		ID:          id,
		Role:        role,
		State:       StateConnected,
		Sink:        sink,
		ConnectedAt: time.Now(),
	}
	r.clients[id] = client
	return client, nil
}

// MarkDisconnected flips a client to disconnected. Idempotent; an unknown id
// is logged and ignored.
func (r *ClientRegistry) MarkDisconnected(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[id]
	if !ok {
		log.Printf("[clients] disconnect for unknown client %s ignored", id)
		return
	}
	client.State = StateDisconnected
	client.Sink = nil
}

// Lookup returns the client with the given id.
func (r *ClientRegistry) Lookup(id string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	if !ok {
		return nil, ErrClientNotFound
	}
	return client, nil
}

// IsValidRecipient reports whether a message may be forwarded to id: the
// client must be registered and currently connected. Used as the routing
// guard before any unicast or broadcast delivery.
func (r *ClientRegistry) IsValidRecipient(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, ok := r.clients[id]
	return ok && client.State == StateConnected && client.Sink != nil
}

// Purge removes a client record entirely. This is the explicit administrative
// path; normal disconnects only mark the client disconnected.
func (r *ClientRegistry) Purge(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
}

// SetRoom records the client's current room. The move is applied in one
// critical section so no observer sees the client roomless in between.
func (r *ClientRegistry) SetRoom(clientID, roomID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	client, ok := r.clients[clientID]
	if !ok {
		return ErrClientNotFound
	}
	client.RoomID = roomID
	return nil
}

// ByRole returns connected clients with the given role, in no particular
// order.
func (r *ClientRegistry) ByRole(role Role) []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Client
	for _, c := range r.clients {
		if c.Role == role && c.State == StateConnected {
			out = append(out, c)
		}
	}
	return out
}

// All returns every client record, connected or not.
func (r *ClientRegistry) All() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// Count returns the number of registered clients.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
