package channel

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// DispatchPolicy selects when a waiting pool carves out a game room.
type DispatchPolicy string

const (
	// DispatchWaitForN dispatches as soon as the pool holds PoolSize players.
	DispatchWaitForN DispatchPolicy = "WAIT_FOR_N_PLAYERS"
	// DispatchTimeout dispatches whoever is present when the pool deadline
	// fires.
	DispatchTimeout DispatchPolicy = "TIMEOUT"
	// DispatchManual dispatches only on an explicit admin command.
	DispatchManual DispatchPolicy = "MANUAL"
)

var (
	ErrPoolClosed           = errors.New("waiting pool is closed")
	ErrNotEnoughForDispatch = errors.New("not enough connected clients for dispatch")
)

// PoolConfig configures a waiting pool. Required fields are validated at
// construction time and never silently defaulted.
type PoolConfig struct {
	// PoolSize is the dispatch target for WAIT_FOR_N_PLAYERS.
	PoolSize int `json:"pool_size"`

	// MaxWaitTime is the relative per-client wait budget. Ignored when
	// StartDate is set.
	MaxWaitTime time.Duration `json:"max_wait_time"`

	// StartDate is an absolute deadline alternative to MaxWaitTime.
	StartDate time.Time `json:"start_date,omitzero"`

	Policy DispatchPolicy `json:"policy"`
	Closed bool           `json:"closed"`

	// Game configures the rooms dispatched out of this pool.
	Game RoomConfig `json:"-"`
}

// Validate reports configuration errors. Malformed pool configuration is
// fatal at construction time.
func (c PoolConfig) Validate() error {
	switch c.Policy {
	case DispatchWaitForN:
		if c.PoolSize < 1 {
			return fmt.Errorf("pool_size must be >= 1, got %d", c.PoolSize)
		}
	case DispatchTimeout:
		if c.MaxWaitTime <= 0 && c.StartDate.IsZero() {
			return fmt.Errorf("TIMEOUT policy requires max_wait_time or start_date")
		}
	case DispatchManual:
	case "":
		return fmt.Errorf("dispatch policy is required")
	default:
		return fmt.Errorf("unknown dispatch policy %q", c.Policy)
	}
	if c.MaxWaitTime < 0 {
		return fmt.Errorf("max_wait_time must not be negative")
	}
	return nil
}

// WaitingPool is a room specialization that accumulates player clients until
// its dispatch policy fires, then atomically carves a subset out into a newly
// created game room.
type WaitingPool struct {
	room    *Room
	cfg     PoolConfig
	clients *ClientRegistry
	rooms   *RoomRegistry

	mu     sync.Mutex
	closed bool

	// codes tracks admission validity per client id. An access code is
	// single-use: consumed on first connect, released again only if the
	// client disconnects for good.
	codes map[string]bool

	// timers holds the active per-client timeout handles; gens detects stale
	// fires. Every player has at most one active handle, cleared exactly once
	// on dispatch, disconnect, or pool closure.
	timers map[string]*time.Timer
	gens   map[string]int

	poolDeadline *time.Timer

	// onAttach completes a dispatched room's logic attachment. The default
	// completes immediately, for in-process logic; the channel swaps in the
	// socket-acknowledged variant when a logic endpoint is expected.
	onAttach func(*Room, *AttachHandle)

	// onDispatched is notified after a game room has been created and
	// started.
	onDispatched func(*Room)
}

// NewWaitingPool creates a waiting pool backed by the given registries. The
// pool's room is registered (and its id minted) by the room registry.
func NewWaitingPool(cfg PoolConfig, clients *ClientRegistry, rooms *RoomRegistry) (*WaitingPool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pool config: %w", err)
	}

	room := newRoom("", RoomWaiting, RoomConfig{Name: "waiting pool"})
	if err := rooms.Adopt(room); err != nil {
		return nil, err
	}

	p := &WaitingPool{
		room:    room,
		cfg:     cfg,
		clients: clients,
		rooms:   rooms,
		closed:  cfg.Closed,
		codes:   make(map[string]bool),
		timers:  make(map[string]*time.Timer),
		gens:    make(map[string]int),
	}
	p.onAttach = func(_ *Room, h *AttachHandle) { h.Complete() }
	return p, nil
}

// Room returns the pool's underlying room.
func (p *WaitingPool) Room() *Room { return p.room }

// Size returns the current pool membership count.
func (p *WaitingPool) Size() int { return p.room.Size() }

// SetAttachFunc overrides how dispatched rooms complete logic attachment.
func (p *WaitingPool) SetAttachFunc(fn func(*Room, *AttachHandle)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fn != nil {
		p.onAttach = fn
	}
}

// SetDispatchedFunc registers a hook invoked after each successful dispatch.
func (p *WaitingPool) SetDispatchedFunc(fn func(*Room)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onDispatched = fn
}

// CodeValid reports whether the client's admission code is still usable.
func (p *WaitingPool) CodeValid(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	valid, ok := p.codes[id]
	return !ok || valid
}

// OnClientConnect admits a freshly connected player. A closed pool turns the
// client away with a ROOM_CLOSED notice. Otherwise the client's access code
// is consumed, the client joins the pool, members learn the new size, a
// per-client timeout is armed, and the dispatch policy is checked.
func (p *WaitingPool) OnClientConnect(c *Client) {
	p.admit(c)
}

// OnClientReconnect re-admits a returning player. The connect path is re-run
// (so it can re-trigger dispatch); the slot its disconnect released is
// consumed again rather than a fresh one, and the client's original queue
// position is preserved by Room.AddClient idempotence.
func (p *WaitingPool) OnClientReconnect(c *Client) {
	p.admit(c)
}

func (p *WaitingPool) admit(c *Client) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.send(c, Message{
			Action: ActionSay,
			Target: TargetRoomClosed,
			To:     c.ID,
			Text:   "Room closed",
		})
		return
	}
	// Consumed on first admission; a reconnect re-consumes the slot that the
	// disconnect released. The slot only stays released when the client never
	// comes back.
	p.codes[c.ID] = false
	p.mu.Unlock()

	p.room.AddClient(c)
	if err := p.clients.SetRoom(c.ID, p.room.ID); err != nil {
		log.Printf("[pool %s] cannot place %s: %v", p.room.ID, c.ID, err)
	}

	p.broadcastSize()
	p.armTimeout(c.ID)
	p.armPoolDeadline()
	p.maybeDispatch()
}

// OnClientDisconnect clears the client's timeout, releases its admission slot
// so another client can take it, and notifies the remaining members. The
// membership entry survives so a HI_AGAIN before purge keeps the original
// queue position; connectivity is what dispatch re-validates.
func (p *WaitingPool) OnClientDisconnect(c *Client) {
	p.clearTimeout(c.ID)

	p.mu.Lock()
	p.codes[c.ID] = true // slot released
	p.mu.Unlock()

	p.broadcastSize()
}

// Close shuts the pool. Members are told the room closed and all timeout
// handles are cleared. Idempotent.
func (p *WaitingPool) Close(reason string) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	if p.poolDeadline != nil {
		p.poolDeadline.Stop()
		p.poolDeadline = nil
	}
	p.mu.Unlock()

	for _, c := range p.room.Members() {
		p.clearTimeout(c.ID)
		p.send(c, Message{
			Action: ActionSay,
			Target: TargetRoomClosed,
			To:     c.ID,
			Text:   reason,
		})
	}
}

// DispatchNow forces a dispatch of the currently connected members, up to the
// configured pool size. This is the MANUAL policy path, reachable from the
// admin surfaces regardless of policy.
func (p *WaitingPool) DispatchNow() (*Room, error) {
	return p.dispatch(false)
}

// maybeDispatch fires the WAIT_FOR_N_PLAYERS trigger once the pool holds the
// target number of connected players.
func (p *WaitingPool) maybeDispatch() {
	if p.cfg.Policy != DispatchWaitForN {
		return
	}
	if p.connectedCount() < p.cfg.PoolSize {
		return
	}
	if _, err := p.dispatch(true); err != nil && !errors.Is(err, ErrNotEnoughForDispatch) {
		log.Printf("[pool %s] dispatch failed: %v", p.room.ID, err)
	}
}

func (p *WaitingPool) connectedCount() int {
	n := 0
	for _, c := range p.room.PlayerClients() {
		if p.clients.IsValidRecipient(c.ID) {
			n++
		}
	}
	return n
}

// dispatch selects members FIFO, re-validates their connectivity immediately
// before the move, and hands the matched set to a new game room. Selection
// and removal happen under the pool lock, so a matched client can never be
// dispatched twice. If a selected client disconnected in the meantime it is
// dropped and, with requireFull set, the pool falls back to waiting for a
// replacement.
func (p *WaitingPool) dispatch(requireFull bool) (*Room, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	// FIFO selection over the insertion-ordered membership, connected only.
	var selected []*Client
	for _, c := range p.room.PlayerClients() {
		if !p.clients.IsValidRecipient(c.ID) {
			continue
		}
		selected = append(selected, c)
		if p.cfg.PoolSize > 0 && len(selected) == p.cfg.PoolSize {
			break
		}
	}

	if len(selected) == 0 || (requireFull && len(selected) < p.cfg.PoolSize) {
		p.mu.Unlock()
		return nil, ErrNotEnoughForDispatch
	}

	// Matched set is final: clear timeouts and leave the pool while still
	// holding the lock.
	for _, c := range selected {
		p.clearTimeoutLocked(c.ID)
		p.room.RemoveClient(c.ID)
	}
	p.mu.Unlock()

	gameRoom, err := p.rooms.CreateRoom(RoomGame, p.cfg.Game)
	if err != nil {
		p.requeue(selected)
		return nil, fmt.Errorf("creating game room: %w", err)
	}

	gameRoom.SetParent(p.room.ID)
	p.room.AddChild(gameRoom.ID)
	for _, c := range selected {
		gameRoom.AddClient(c)
		if err := p.clients.SetRoom(c.ID, gameRoom.ID); err != nil {
			log.Printf("[pool %s] move of %s incomplete: %v", p.room.ID, c.ID, err)
		}
	}

	handle, err := gameRoom.SetupGame()
	if err != nil {
		// Logic attachment failed: discard the room and return the matched
		// clients to the pool to wait for the next attempt.
		log.Printf("[pool %s] game setup failed, returning %d clients: %v",
			p.room.ID, len(selected), err)
		p.rooms.Destroy(gameRoom.ID)
		p.requeue(selected)
		return nil, err
	}

	p.mu.Lock()
	attach := p.onAttach
	dispatched := p.onDispatched
	p.mu.Unlock()

	attach(gameRoom, handle)
	gameRoom.StartGame(true)
	p.broadcastSize()

	if dispatched != nil {
		dispatched(gameRoom)
	}
	log.Printf("[pool %s] dispatched %d clients into room %s",
		p.room.ID, len(selected), gameRoom.ID)
	return gameRoom, nil
}

// requeue returns clients to the pool after a failed dispatch attempt. They
// go back to the head of the queue in their original relative order, keeping
// the FIFO position they held before selection.
func (p *WaitingPool) requeue(clients []*Client) {
	for i := len(clients) - 1; i >= 0; i-- {
		c := clients[i]
		p.room.AddClientFront(c)
		if err := p.clients.SetRoom(c.ID, p.room.ID); err != nil {
			log.Printf("[pool %s] requeue of %s incomplete: %v", p.room.ID, c.ID, err)
		}
		p.armTimeout(c.ID)
	}
	p.broadcastSize()
}

// armTimeout starts the per-client wait timer. An absolute StartDate wins
// over the relative MaxWaitTime; with neither configured no timer is armed.
// Arming replaces any previous handle, keeping the at-most-one invariant.
// Under the TIMEOUT policy the pool deadline owns the clock and no
// per-client timers are armed; members stay pooled until the deadline
// dispatch takes them.
func (p *WaitingPool) armTimeout(id string) {
	if p.cfg.Policy == DispatchTimeout {
		return
	}

	var wait time.Duration
	switch {
	case !p.cfg.StartDate.IsZero():
		wait = time.Until(p.cfg.StartDate)
	case p.cfg.MaxWaitTime > 0:
		wait = p.cfg.MaxWaitTime
	default:
		return
	}
	if wait < 0 {
		wait = 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.clearTimeoutLocked(id)
	p.gens[id]++
	gen := p.gens[id]
	p.timers[id] = time.AfterFunc(wait, func() {
		p.onTimeout(id, gen)
	})
}

// onTimeout handles a fired wait timer. A stale fire (the handle was cleared
// after the timer went off) is detected by generation mismatch and ignored.
func (p *WaitingPool) onTimeout(id string, gen int) {
	p.mu.Lock()
	if p.closed || p.gens[id] != gen {
		p.mu.Unlock()
		return
	}
	delete(p.timers, id)
	p.gens[id]++
	p.codes[id] = true // slot released
	p.mu.Unlock()

	if !p.room.Has(id) {
		return
	}
	p.room.RemoveClient(id)

	if c, err := p.clients.Lookup(id); err == nil {
		p.send(c, Message{
			Action: ActionSay,
			Target: TargetTIME,
			To:     id,
			Text:   "Waiting time expired",
		})
	}
	log.Printf("[pool %s] client %s timed out waiting", p.room.ID, id)
	p.broadcastSize()
}

// clearTimeout cancels a client's pending wait timer. Safe to call when no
// timer is armed; double-clearing is a no-op.
func (p *WaitingPool) clearTimeout(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clearTimeoutLocked(id)
}

func (p *WaitingPool) clearTimeoutLocked(id string) {
	if t, ok := p.timers[id]; ok {
		t.Stop()
		delete(p.timers, id)
	}
	p.gens[id]++
}

// armPoolDeadline starts the pool-level deadline for the TIMEOUT policy. The
// first admission arms it; when it fires, whoever is present is dispatched.
func (p *WaitingPool) armPoolDeadline() {
	if p.cfg.Policy != DispatchTimeout {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.poolDeadline != nil || p.closed {
		return
	}

	var wait time.Duration
	if !p.cfg.StartDate.IsZero() {
		wait = time.Until(p.cfg.StartDate)
	} else {
		wait = p.cfg.MaxWaitTime
	}
	if wait < 0 {
		wait = 0
	}

	p.poolDeadline = time.AfterFunc(wait, func() {
		if _, err := p.dispatch(false); err != nil {
			log.Printf("[pool %s] deadline dispatch: %v", p.room.ID, err)
		}
	})
}

// broadcastSize tells every pool member the current size and target. The
// snapshot is taken after the membership mutation it describes.
func (p *WaitingPool) broadcastSize() {
	members := p.room.Members()
	connected := 0
	for _, c := range members {
		if p.clients.IsValidRecipient(c.ID) {
			connected++
		}
	}
	payload := map[string]int{
		"size":   connected,
		"target": p.cfg.PoolSize,
	}
	msg := Message{Action: ActionSay, Target: TargetPLIST, To: RecipientRoom}.WithData(payload)
	for _, c := range members {
		p.send(c, msg.Forwarded(c.ID))
	}
}

func (p *WaitingPool) send(c *Client, msg Message) {
	if c == nil || c.Sink == nil {
		return
	}
	if err := c.Sink.Send(msg); err != nil {
		log.Printf("[pool %s] send to %s failed: %v", p.room.ID, c.ID, err)
	}
}
