package channel

import (
	"errors"
	"sync"
)

var ErrSetup = errors.New("game setup failed")

// GameLogic is the attached game-logic instance driving a room's gameplay.
// The room consults the guard methods before every state transition; a guard
// returning false downgrades the transition to a logged no-op.
type GameLogic interface {
	Startable() bool
	Pausable() bool
	Resumable() bool
	Stoppable() bool

	Start() error
	Pause() error
	Resume() error
	Stop() error
}

// LogicFactory builds the game logic for a freshly created room. A factory
// returning nil logic (or an error) fails that room's dispatch attempt.
type LogicFactory func(room *Room) (GameLogic, error)

// AttachHandle tracks a pending logic attachment. Connecting a logic instance
// to its room is asynchronous (the logic process joins over its own
// connection), so setup hands out a handle and the room queues start commands
// until Complete is called.
type AttachHandle struct {
	room *Room

	mu   sync.Mutex
	done bool
}

// Complete marks the attachment finished and replays any queued start. Safe
// to call once; later calls are no-ops.
func (h *AttachHandle) Complete() {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	h.done = true
	h.mu.Unlock()

	h.room.completeAttach()
}

// Done reports whether the attachment has completed.
func (h *AttachHandle) Done() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.done
}

// ScriptedLogic is a minimal GameLogic driven purely by the room state
// machine. It is the default factory product when a channel configuration
// names no custom logic, and the workhorse of the test suite.
type ScriptedLogic struct {
	mu      sync.Mutex
	started bool
	paused  bool
	stopped bool
}

// NewScriptedLogic returns a fresh scripted logic instance.
func NewScriptedLogic() *ScriptedLogic { return &ScriptedLogic{} }

func (l *ScriptedLogic) Startable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return !l.started && !l.stopped
}

func (l *ScriptedLogic) Pausable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started && !l.paused && !l.stopped
}

func (l *ScriptedLogic) Resumable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started && l.paused && !l.stopped
}

func (l *ScriptedLogic) Stoppable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.started && !l.stopped
}

func (l *ScriptedLogic) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.started = true
	return nil
}

func (l *ScriptedLogic) Pause() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = true
	return nil
}

func (l *ScriptedLogic) Resume() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = false
	return nil
}

func (l *ScriptedLogic) Stop() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stopped = true
	return nil
}

// DefaultLogicFactory produces a ScriptedLogic for every room.
func DefaultLogicFactory(_ *Room) (GameLogic, error) {
	return NewScriptedLogic(), nil
}
