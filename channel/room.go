package channel

import (
	"log"
	"sync"
	"time"
)

// RoomState is a room's position in its lifecycle.
//
//	uninitialized → initialized → running ⇄ paused → stopped
//
// stopped is terminal.
type RoomState string

const (
	RoomUninitialized RoomState = "uninitialized"
	RoomInitialized   RoomState = "initialized"
	RoomRunning       RoomState = "running"
	RoomPaused        RoomState = "paused"
	RoomStopped       RoomState = "stopped"
)

// Remote game commands sent to player clients when an admin drives the state
// machine with startPlayers/pausePlayers/... set.
const (
	CommandStart  = "start"
	CommandPause  = "pause"
	CommandResume = "resume"
	CommandStop   = "stop"
)

// RequirementsChecker gates entry into a requirements room. A nil error
// admits the client.
type RequirementsChecker func(c *Client) error

// RoomConfig carries the per-room settings fixed at creation time.
type RoomConfig struct {
	Name     string
	Capacity int

	// Logic builds the game logic attached during SetupGame. Defaults to
	// DefaultLogicFactory when nil.
	Logic LogicFactory

	// Checker applies to requirements rooms only.
	Checker RequirementsChecker
}

// CommandSender delivers remote commands to player clients. The Channel
// implements it; rooms created outside a channel (tests) may leave it nil, in
// which case commands go directly to the client sink.
type CommandSender interface {
	RemoteCommand(command, clientID string) error
}

// Room is a uniquely identified container for a subset of clients plus an
// attached game-logic instance and its run state. Rooms index membership;
// client records are owned by the ClientRegistry.
type Room struct {
	ID   string
	Type RoomType

	mu       sync.Mutex
	cfg      RoomConfig
	state    RoomState
	parentID string
	childIDs []string

	// members holds current membership; order preserves insertion order so
	// views and pool dispatch are deterministic.
	members map[string]*Client
	order   []string

	logic        GameLogic
	attach       *AttachHandle
	attached     bool
	pendingStart *bool

	remote    CommandSender
	createdAt time.Time
}

func newRoom(id string, roomType RoomType, cfg RoomConfig) *Room {
	return &Room{
		ID:        id,
		Type:      roomType,
		cfg:       cfg,
		state:     RoomUninitialized,
		members:   make(map[string]*Client),
		createdAt: time.Now(),
	}
}

// SetRemote wires the command sender used for startPlayers-style fan-out.
func (r *Room) SetRemote(remote CommandSender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.remote = remote
}

// State returns the room's current lifecycle state.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Config returns the room's creation-time configuration.
func (r *Room) Config() RoomConfig {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cfg
}

// AddClient indexes a client as a room member. Re-adding a member is a no-op
// so reconnection paths stay idempotent.
func (r *Room) AddClient(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[c.ID]; ok {
		return
	}
	r.members[c.ID] = c
	r.order = append(r.order, c.ID)
}

// AddClientFront indexes a client at the head of the membership order.
// Re-adding a member is a no-op, like AddClient.
func (r *Room) AddClientFront(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[c.ID]; ok {
		return
	}
	r.members[c.ID] = c
	r.order = append([]string{c.ID}, r.order...)
}

// RemoveClient drops a client from the membership index. Unknown ids are
// ignored.
func (r *Room) RemoveClient(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeLocked(id)
}

func (r *Room) removeLocked(id string) {
	if _, ok := r.members[id]; !ok {
		return
	}
	delete(r.members, id)
	for i, memberID := range r.order {
		if memberID == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Has reports membership.
func (r *Room) Has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.members[id]
	return ok
}

// Members returns the membership in insertion order.
func (r *Room) Members() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked()
}

func (r *Room) membersLocked() []*Client {
	out := make([]*Client, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.members[id])
	}
	return out
}

// PlayerClients returns the player-view partition of the membership.
func (r *Room) PlayerClients() []*Client {
	return r.membersByRole(RolePlayer)
}

// AdminClients returns the admin-view partition of the membership.
func (r *Room) AdminClients() []*Client {
	return r.membersByRole(RoleAdmin)
}

func (r *Room) membersByRole(role Role) []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*Client
	for _, id := range r.order {
		if c := r.members[id]; c.Role == role {
			out = append(out, c)
		}
	}
	return out
}

// Size returns the current member count.
func (r *Room) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.members)
}

// ParentID returns the id of the room this one was dispatched from, if any.
func (r *Room) ParentID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.parentID
}

// SetParent links this room under a parent room.
func (r *Room) SetParent(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parentID = id
}

// AddChild appends a child room id, preserving dispatch order.
func (r *Room) AddChild(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.childIDs = append(r.childIDs, id)
}

// Children returns the child room ids in dispatch order.
func (r *Room) Children() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.childIDs))
	copy(out, r.childIDs)
	return out
}

// SetupGame runs the logic factory and begins the two-phase attachment,
// moving the room to initialized. Valid only from uninitialized; a second
// call, a nil factory product, or a factory error fails with ErrSetup. The
// returned handle must be completed (by the logic's own connection
// acknowledgment, or immediately for in-process logic) before StartGame takes
// effect.
func (r *Room) SetupGame() (*AttachHandle, error) {
	r.mu.Lock()
	if r.state != RoomUninitialized {
		r.mu.Unlock()
		return nil, ErrSetup
	}
	factory := r.cfg.Logic
	if factory == nil {
		factory = DefaultLogicFactory
	}
	r.mu.Unlock()

	logic, err := factory(r)
	if err != nil || logic == nil {
		return nil, ErrSetup
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != RoomUninitialized {
		return nil, ErrSetup
	}
	r.logic = logic
	r.state = RoomInitialized
	r.attach = &AttachHandle{room: r}
	return r.attach, nil
}

// completeAttach finishes the attachment and replays a queued start.
func (r *Room) completeAttach() {
	r.mu.Lock()
	r.attached = true
	pending := r.pendingStart
	r.pendingStart = nil
	r.mu.Unlock()

	if pending != nil {
		r.StartGame(*pending)
	}
}

// StartGame moves the room to running if the attached logic reports itself
// startable. With startPlayers set, every player member also receives a
// remote "start" command. A failed guard is a logged warning, never an error:
// a supervising admin may legitimately repeat commands. Calling StartGame
// before the logic attachment completes queues the start; it replays once the
// attach handle is completed.
func (r *Room) StartGame(startPlayers bool) {
	r.mu.Lock()
	if r.state == RoomInitialized && !r.attached {
		p := startPlayers
		r.pendingStart = &p
		r.mu.Unlock()
		log.Printf("[room %s] start queued until game logic attaches", r.ID)
		return
	}
	if r.state != RoomInitialized || r.logic == nil || !r.logic.Startable() {
		state := r.state
		r.mu.Unlock()
		log.Printf("[room %s] start ignored: not startable (state %s)", r.ID, state)
		return
	}
	if err := r.logic.Start(); err != nil {
		r.mu.Unlock()
		log.Printf("[room %s] start ignored: logic refused: %v", r.ID, err)
		return
	}
	r.state = RoomRunning
	players := r.playersLocked()
	r.mu.Unlock()

	if startPlayers {
		r.commandPlayers(CommandStart, players)
	}
}

// PauseGame moves a running room to paused; symmetric to ResumeGame.
func (r *Room) PauseGame(pausePlayers bool) {
	r.transition(RoomRunning, RoomPaused, CommandPause, pausePlayers,
		func(l GameLogic) bool { return l.Pausable() },
		func(l GameLogic) error { return l.Pause() })
}

// ResumeGame moves a paused room back to running.
func (r *Room) ResumeGame(resumePlayers bool) {
	r.transition(RoomPaused, RoomRunning, CommandResume, resumePlayers,
		func(l GameLogic) bool { return l.Resumable() },
		func(l GameLogic) error { return l.Resume() })
}

// StopGame moves a running or paused room to stopped (terminal).
func (r *Room) StopGame(stopPlayers bool) {
	r.mu.Lock()
	if (r.state != RoomRunning && r.state != RoomPaused) || r.logic == nil || !r.logic.Stoppable() {
		state := r.state
		r.mu.Unlock()
		log.Printf("[room %s] stop ignored: not stoppable (state %s)", r.ID, state)
		return
	}
	if err := r.logic.Stop(); err != nil {
		r.mu.Unlock()
		log.Printf("[room %s] stop ignored: logic refused: %v", r.ID, err)
		return
	}
	r.state = RoomStopped
	players := r.playersLocked()
	r.mu.Unlock()

	if stopPlayers {
		r.commandPlayers(CommandStop, players)
	}
}

func (r *Room) transition(from, to RoomState, command string, toPlayers bool,
	guard func(GameLogic) bool, apply func(GameLogic) error) {

	r.mu.Lock()
	if r.state != from || r.logic == nil || !guard(r.logic) {
		state := r.state
		r.mu.Unlock()
		log.Printf("[room %s] %s ignored: guard failed (state %s)", r.ID, command, state)
		return
	}
	if err := apply(r.logic); err != nil {
		r.mu.Unlock()
		log.Printf("[room %s] %s ignored: logic refused: %v", r.ID, command, err)
		return
	}
	r.state = to
	players := r.playersLocked()
	r.mu.Unlock()

	if toPlayers {
		r.commandPlayers(command, players)
	}
}

func (r *Room) playersLocked() []*Client {
	var out []*Client
	for _, id := range r.order {
		if c := r.members[id]; c.Role == RolePlayer {
			out = append(out, c)
		}
	}
	return out
}

// commandPlayers fans a remote command out to player members. Delivery goes
// through the channel's CommandSender when wired, otherwise straight to the
// client sinks.
func (r *Room) commandPlayers(command string, players []*Client) {
	r.mu.Lock()
	remote := r.remote
	r.mu.Unlock()

	for _, c := range players {
		if remote != nil {
			if err := remote.RemoteCommand(command, c.ID); err != nil {
				log.Printf("[room %s] remote %s to %s failed: %v", r.ID, command, c.ID, err)
			}
			continue
		}
		if c.Sink == nil {
			continue
		}
		msg := Message{Action: ActionSay, Target: TargetGameCommand, To: c.ID, Text: command}
		if err := c.Sink.Send(msg); err != nil {
			log.Printf("[room %s] %s to %s failed: %v", r.ID, command, c.ID, err)
		}
	}
}

// Snapshot returns a serializable view of the room for the admin surfaces.
func (r *Room) Snapshot() RoomSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := RoomSnapshot{
		ID:        r.ID,
		Name:      r.cfg.Name,
		Type:      r.Type,
		State:     r.state,
		ParentID:  r.parentID,
		Children:  append([]string(nil), r.childIDs...),
		CreatedAt: r.createdAt,
	}
	for _, id := range r.order {
		c := r.members[id]
		snap.Members = append(snap.Members, MemberSnapshot{
			ID:     c.ID,
			Role:   c.Role,
			State:  c.State,
			Synced: c.Synced,
		})
	}
	return snap
}

// RoomSnapshot is the JSON view of a room exposed over the admin API.
type RoomSnapshot struct {
	ID        string           `json:"id"`
	Name      string           `json:"name,omitempty"`
	Type      RoomType         `json:"type"`
	State     RoomState        `json:"state"`
	ParentID  string           `json:"parent_id,omitempty"`
	Children  []string         `json:"children,omitempty"`
	Members   []MemberSnapshot `json:"members,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// MemberSnapshot is the JSON view of a room member.
type MemberSnapshot struct {
	ID     string    `json:"id"`
	Role   Role      `json:"role"`
	State  ConnState `json:"state"`
	Synced bool      `json:"synced"`
}
