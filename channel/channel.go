package channel

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
)

// Extra targets used by the channel itself.
const (
	TargetGameCommand = "GAMECOMMAND"
	TargetSetup       = "SETUP"
)

var ErrUnknownSender = errors.New("message from unregistered sender")

// MemoryStore is the narrow interface to the shared memory log collaborator.
// Room-wide SET.DATA traffic is appended as (key, value, from) records.
type MemoryStore interface {
	Add(key string, value []byte, from string) error
	Close() error
}

// Config configures a channel. The pool configuration is required; a
// malformed one fails construction immediately.
type Config struct {
	Pool PoolConfig

	// Requirements optionally gates player admission before the waiting
	// pool. A nil checker admits everyone directly into the pool.
	Requirements RequirementsChecker
}

// Channel is the coordinating facade binding the registries, the rooms, and
// the two endpoint routers together. It owns all of this state explicitly,
// with no ambient globals, and hands references down to routers, rooms, and
// transports.
type Channel struct {
	clients *ClientRegistry
	rooms   *RoomRegistry
	pool    *WaitingPool
	reqRoom *Room

	playerRouter Router
	adminRouter  Router

	memory MemoryStore

	// ops serializes transport events and timer callbacks onto one logical
	// queue, preserving per-client arrival order (each connection posts from
	// a single reader goroutine).
	ops chan func()

	shutdownOnce sync.Once
	done         chan struct{}
}

// New constructs a channel from a validated configuration.
func New(cfg Config, memory MemoryStore) (*Channel, error) {
	clients := NewClientRegistry()
	rooms := NewRoomRegistry()

	pool, err := NewWaitingPool(cfg.Pool, clients, rooms)
	if err != nil {
		return nil, fmt.Errorf("creating waiting pool: %w", err)
	}

	ch := &Channel{
		clients: clients,
		rooms:   rooms,
		pool:    pool,
		memory:  memory,
		ops:     make(chan func(), 256),
		done:    make(chan struct{}),
	}
	ch.playerRouter = &PlayerRouter{ch: ch}
	ch.adminRouter = &AdminRouter{ch: ch}
	ch.pool.Room().SetRemote(ch)
	ch.pool.SetDispatchedFunc(func(room *Room) {
		room.SetRemote(ch)
		ch.BroadcastRoster()
	})

	if cfg.Requirements != nil {
		reqRoom, err := rooms.CreateRoom(RoomRequirements, RoomConfig{
			Name:    "requirements check",
			Checker: cfg.Requirements,
		})
		if err != nil {
			return nil, fmt.Errorf("creating requirements room: %w", err)
		}
		ch.reqRoom = reqRoom
	}

	return ch, nil
}

// Run consumes the serialized op queue until the context is cancelled, then
// shuts the channel down.
func (ch *Channel) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			ch.Shutdown()
			return
		case op := <-ch.ops:
			op()
		case <-ch.done:
			return
		}
	}
}

// Post enqueues an operation onto the serialized queue.
func (ch *Channel) Post(op func()) {
	select {
	case ch.ops <- op:
	case <-ch.done:
	}
}

// Ingest posts a raw inbound envelope for routing. Transports call this from
// their per-connection reader goroutine.
func (ch *Channel) Ingest(from string, raw []byte) {
	ch.Post(func() {
		if err := ch.RouteMessage(from, raw); err != nil {
			log.Printf("[channel] dropped message from %s: %v", from, err)
		}
	})
}

// RouteMessage parses and routes one envelope. The sender id is
// transport-authoritative: whatever the envelope claims, From is overwritten
// with the id of the connection it arrived on. Messages from senders that are
// not registered and connected never reach a router.
func (ch *Channel) RouteMessage(from string, raw []byte) error {
	msg, err := ParseMessage(raw)
	if err != nil {
		return err
	}
	msg.From = from
	return ch.Route(msg)
}

// Route dispatches an already-parsed message through the sender's endpoint
// router.
func (ch *Channel) Route(msg Message) error {
	sender, err := ch.clients.Lookup(msg.From)
	if err != nil || sender.State != StateConnected {
		return fmt.Errorf("%w: %s", ErrUnknownSender, msg.From)
	}

	switch sender.Role {
	case RoleAdmin, RoleMonitor:
		ch.adminRouter.Handle(msg)
	default:
		ch.playerRouter.Handle(msg)
	}
	return nil
}

// Connect registers a connection under the given id (minting one when empty)
// and places players into the waiting pool, running the requirements check
// first when one is configured. A currently connected duplicate id is
// rejected; a known-but-disconnected id is treated as a reconnection and
// keeps its original pool position.
func (ch *Channel) Connect(id string, role Role, sink Sink) (*Client, error) {
	if id == "" {
		id = uuid.NewString()
	}

	reconnecting := false
	if existing, err := ch.clients.Lookup(id); err == nil {
		reconnecting = existing.State == StateDisconnected
	}

	client, err := ch.clients.Register(id, role, sink)
	if err != nil {
		return nil, err
	}

	if role == RolePlayer {
		switch {
		case reconnecting:
			// Only pool-bound clients rejoin the pool; a player who was
			// already dispatched into a game room keeps that room.
			if client.RoomID == "" || client.RoomID == ch.pool.Room().ID {
				ch.pool.OnClientReconnect(client)
			}
		case ch.reqRoom != nil:
			ch.admitThroughRequirements(client)
		default:
			ch.pool.OnClientConnect(client)
		}
	}

	ch.BroadcastRoster()
	log.Printf("[channel] %s %s connected (reconnect=%v)", role, client.ID, reconnecting)
	return client, nil
}

// admitThroughRequirements runs the configured checker. Passing clients move
// on into the waiting pool; failing ones get a text notice and a ROOM_CLOSED.
func (ch *Channel) admitThroughRequirements(c *Client) {
	ch.reqRoom.AddClient(c)
	if err := ch.clients.SetRoom(c.ID, ch.reqRoom.ID); err != nil {
		log.Printf("[channel] requirements placement of %s failed: %v", c.ID, err)
	}

	checker := ch.reqRoom.Config().Checker
	if err := checker(c); err != nil {
		ch.deliver(c.ID, SayText("", c.ID, err.Error()))
		ch.deliver(c.ID, Message{
			Action: ActionSay,
			Target: TargetRoomClosed,
			To:     c.ID,
			Text:   "Room closed",
		})
		ch.reqRoom.RemoveClient(c.ID)
		log.Printf("[channel] %s failed requirements check: %v", c.ID, err)
		return
	}

	ch.reqRoom.RemoveClient(c.ID)
	ch.pool.OnClientConnect(c)
}

// Disconnect marks a client disconnected and lets its room react. The record
// stays registered so a HI_AGAIN can revive it.
func (ch *Channel) Disconnect(id string) {
	client, err := ch.clients.Lookup(id)
	if err != nil {
		ch.clients.MarkDisconnected(id) // logs the unknown id
		return
	}

	ch.clients.MarkDisconnected(id)
	if client.Role == RolePlayer && client.RoomID == ch.pool.Room().ID {
		ch.pool.OnClientDisconnect(client)
	}
	ch.BroadcastRoster()
}

// Purge removes a client record for good (administrative purge).
func (ch *Channel) Purge(id string) {
	if client, err := ch.clients.Lookup(id); err == nil && client.RoomID != "" {
		if room, err := ch.rooms.Get(client.RoomID); err == nil {
			room.RemoveClient(id)
		}
	}
	ch.clients.Purge(id)
}

// Clients returns the client registry.
func (ch *Channel) Clients() *ClientRegistry { return ch.clients }

// Rooms returns the room registry.
func (ch *Channel) Rooms() *RoomRegistry { return ch.rooms }

// Pool returns the default waiting pool.
func (ch *Channel) Pool() *WaitingPool { return ch.pool }

// Players returns the player-view roster.
func (ch *Channel) Players() []*Client { return ch.clients.ByRole(RolePlayer) }

// Admins returns the admin-view roster.
func (ch *Channel) Admins() []*Client { return ch.clients.ByRole(RoleAdmin) }

// RemoteCommand sends a game command (start, pause, ...) to a client.
func (ch *Channel) RemoteCommand(command, clientID string) error {
	if !ch.clients.IsValidRecipient(clientID) {
		return fmt.Errorf("remote %s: %w", command, ErrClientNotFound)
	}
	ch.deliver(clientID, Message{
		Action: ActionSay,
		Target: TargetGameCommand,
		To:     clientID,
		Text:   command,
	})
	return nil
}

// RemoteSetup sends a module setup instruction to a client.
func (ch *Channel) RemoteSetup(module, clientID string, config any) error {
	if !ch.clients.IsValidRecipient(clientID) {
		return fmt.Errorf("remote setup %s: %w", module, ErrClientNotFound)
	}
	msg := Message{
		Action: ActionSay,
		Target: TargetSetup,
		To:     clientID,
		Text:   module,
	}.WithData(config)
	ch.deliver(clientID, msg)
	return nil
}

// CompleteAttach acknowledges a room's game-logic attachment, releasing any
// queued start command. Used when the logic endpoint connects over its own
// socket.
func (ch *Channel) CompleteAttach(roomID string) error {
	room, err := ch.rooms.Get(roomID)
	if err != nil {
		return err
	}
	room.completeAttach()
	return nil
}

// CheckSync reports whether every connected player in the room has confirmed
// the current game state. An empty room id checks all connected players.
func (ch *Channel) CheckSync(roomID string) bool {
	if roomID == "" {
		for _, c := range ch.clients.ByRole(RolePlayer) {
			if !c.Synced {
				return false
			}
		}
		return true
	}

	room, err := ch.rooms.Get(roomID)
	if err != nil {
		return false
	}
	for _, c := range room.PlayerClients() {
		if c.State == StateConnected && !c.Synced {
			return false
		}
	}
	return true
}

// BroadcastRoster sends the current roster to every player and mirrors it to
// the admin side. Sent after the membership mutation it describes, never
// before.
func (ch *Channel) BroadcastRoster() {
	roster := ch.rosterSnapshot()
	msg := Message{Action: ActionSay, Target: TargetPLIST, To: RecipientAll}.WithData(roster)

	ch.broadcastPlayers(msg, "")
	ch.broadcastObservers(msg, "")
}

// RosterEntry is one line of the PLIST roster payload.
type RosterEntry struct {
	ID     string    `json:"id"`
	Role   Role      `json:"role"`
	State  ConnState `json:"state"`
	RoomID string    `json:"room_id,omitempty"`
}

func (ch *Channel) rosterSnapshot() []RosterEntry {
	all := ch.clients.All()
	roster := make([]RosterEntry, 0, len(all))
	for _, c := range all {
		roster = append(roster, RosterEntry{
			ID:     c.ID,
			Role:   c.Role,
			State:  c.State,
			RoomID: c.RoomID,
		})
	}
	return roster
}

// deliver unicasts a message to a connected client. Delivery failures are
// recovered locally: logged, never propagated to other clients.
func (ch *Channel) deliver(to string, msg Message) {
	client, err := ch.clients.Lookup(to)
	if err != nil || client.Sink == nil {
		log.Printf("[channel] no sink for %s, dropping %s.%s", to, msg.Action, msg.Target)
		return
	}
	if err := client.Sink.Send(msg.Forwarded(to)); err != nil {
		log.Printf("[channel] send to %s failed: %v", to, err)
	}
}

// broadcastPlayers fans a message out to every connected player.
func (ch *Channel) broadcastPlayers(msg Message, exclude string) {
	for _, c := range ch.clients.ByRole(RolePlayer) {
		if c.ID == exclude {
			continue
		}
		ch.deliver(c.ID, msg)
	}
}

// broadcastObservers fans a message out to the admin-facing side (admins and
// monitors).
func (ch *Channel) broadcastObservers(msg Message, exclude string) {
	for _, role := range []Role{RoleAdmin, RoleMonitor} {
		for _, c := range ch.clients.ByRole(role) {
			if c.ID == exclude {
				continue
			}
			ch.deliver(c.ID, msg)
		}
	}
}

// broadcastRoom fans a message out to every member of a room.
func (ch *Channel) broadcastRoom(roomID string, msg Message, exclude string) {
	room, err := ch.rooms.Get(roomID)
	if err != nil {
		log.Printf("[channel] broadcast to unknown room %s dropped", roomID)
		return
	}
	for _, c := range room.Members() {
		if c.ID == exclude {
			continue
		}
		ch.deliver(c.ID, msg)
	}
}

// targetRoomID resolves the room a message is aimed at: the recipient's room
// when the recipient is a concrete client, otherwise the sender's own room.
func (ch *Channel) targetRoomID(msg Message) string {
	if msg.To != "" && msg.To != RecipientAll && msg.To != RecipientRoom {
		if c, err := ch.clients.Lookup(msg.To); err == nil {
			return c.RoomID
		}
	}
	if c, err := ch.clients.Lookup(msg.From); err == nil {
		return c.RoomID
	}
	return ""
}

// Shutdown broadcasts a final roster snapshot, clears the client lists, and
// closes the logging sink. It runs exactly once no matter how many endpoint
// routers or transports are active.
func (ch *Channel) Shutdown() {
	ch.shutdownOnce.Do(func() {
		log.Printf("[channel] shutting down")
		ch.BroadcastRoster()
		ch.pool.Close("Server shutting down")

		for _, c := range ch.clients.All() {
			if c.Sink != nil {
				_ = c.Sink.Close()
			}
			ch.clients.Purge(c.ID)
		}

		if ch.memory != nil {
			if err := ch.memory.Close(); err != nil {
				log.Printf("[channel] memory close: %v", err)
			}
		}
		close(ch.done)
	})
}
