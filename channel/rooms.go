package channel

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"sync"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrIDGeneration   = errors.New("room id generation exhausted retries")
	ErrRoomRegistered = errors.New("room id already registered")
)

// idRetryLimit bounds collision retries when minting a room id. Collisions
// should not occur in practice with 4 random bytes; the bound is there so an
// exhausted id space fails loudly instead of spinning.
const idRetryLimit = 5

// RoomType distinguishes the three kinds of rooms the server runs.
type RoomType string

const (
	RoomWaiting      RoomType = "waiting"
	RoomRequirements RoomType = "requirements"
	RoomGame         RoomType = "game"
)

// RoomRegistry owns the room id space. Ids are unique for the lifetime of the
// process: destroyed rooms leave a tombstone so their id is never reissued.
type RoomRegistry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	// retired holds ids of destroyed rooms. A registered id is never reused.
	retired map[string]struct{}
}

// NewRoomRegistry creates an empty room registry.
func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:   make(map[string]*Room),
		retired: make(map[string]struct{}),
	}
}

// CreateRoom mints a process-wide unique id, registers a new room under it,
// and returns the room. Id generation is collision-checked against live and
// retired rooms of every type; ErrIDGeneration is returned if the retry
// budget is exhausted.
func (r *RoomRegistry) CreateRoom(roomType RoomType, cfg RoomConfig) (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, err := r.mintID()
	if err != nil {
		return nil, err
	}

	room := newRoom(id, roomType, cfg)
	r.rooms[id] = room
	return room, nil
}

// Adopt registers an externally constructed room (the channel's default
// waiting pool) under a fresh unique id. Re-registering a room that already
// has an id fails with ErrRoomRegistered.
func (r *RoomRegistry) Adopt(room *Room) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if room.ID != "" {
		return ErrRoomRegistered
	}
	id, err := r.mintID()
	if err != nil {
		return err
	}
	room.ID = id
	r.rooms[id] = room
	return nil
}

// Get returns the room with the given id.
func (r *RoomRegistry) Get(id string) (*Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[id]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// Destroy removes a room from the registry and retires its id. Idempotent:
// destroying an absent room is a no-op.
func (r *RoomRegistry) Destroy(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[id]; !ok {
		return
	}
	delete(r.rooms, id)
	r.retired[id] = struct{}{}
}

// List returns all live rooms.
func (r *RoomRegistry) List() []*Room {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		out = append(out, room)
	}
	return out
}

// Count returns the number of live rooms.
func (r *RoomRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// mintID generates a short random room code, retrying on collision against
// live and retired ids. Caller holds r.mu.
func (r *RoomRegistry) mintID() (string, error) {
	for range idRetryLimit {
		buf := make([]byte, 4)
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		id := hex.EncodeToString(buf)

		if _, live := r.rooms[id]; live {
			continue
		}
		if _, dead := r.retired[id]; dead {
			continue
		}
		return id, nil
	}
	return "", ErrIDGeneration
}
