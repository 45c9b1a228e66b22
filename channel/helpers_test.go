package channel

import (
	"sync"
	"testing"
)

// recorderSink captures everything sent to a client so tests can assert on
// delivery order and content.
type recorderSink struct {
	mu     sync.Mutex
	msgs   []Message
	closed bool
}

func (s *recorderSink) Send(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recorderSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *recorderSink) messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.msgs))
	copy(out, s.msgs)
	return out
}

func (s *recorderSink) byTarget(target string) []Message {
	var out []Message
	for _, m := range s.messages() {
		if m.Target == target {
			out = append(out, m)
		}
	}
	return out
}

func (s *recorderSink) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// recordingMemory is an in-memory MemoryStore capturing appended records.
type recordingMemory struct {
	mu      sync.Mutex
	records []memoryRecord
	closed  int
}

type memoryRecord struct {
	Key   string
	Value []byte
	From  string
}

func (m *recordingMemory) Add(key string, value []byte, from string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, memoryRecord{Key: key, Value: value, From: from})
	return nil
}

func (m *recordingMemory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

func (m *recordingMemory) all() []memoryRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]memoryRecord, len(m.records))
	copy(out, m.records)
	return out
}

// testPoolConfig returns a small WAIT_FOR_N_PLAYERS pool configuration.
func testPoolConfig(size int) PoolConfig {
	return PoolConfig{
		PoolSize: size,
		Policy:   DispatchWaitForN,
		Game:     RoomConfig{Name: "test game", Capacity: size},
	}
}

// newTestChannel builds a channel with the given pool size and a recording
// memory store.
func newTestChannel(t *testing.T, size int) (*Channel, *recordingMemory) {
	t.Helper()
	mem := &recordingMemory{}
	ch, err := New(Config{Pool: testPoolConfig(size)}, mem)
	if err != nil {
		t.Fatalf("Failed to create channel: %v", err)
	}
	return ch, mem
}

// connectPlayer registers a player with a recorder sink.
func connectPlayer(t *testing.T, ch *Channel, id string) (*Client, *recorderSink) {
	t.Helper()
	sink := &recorderSink{}
	c, err := ch.Connect(id, RolePlayer, sink)
	if err != nil {
		t.Fatalf("Failed to connect player %s: %v", id, err)
	}
	return c, sink
}

// connectAdmin registers an admin with a recorder sink.
func connectAdmin(t *testing.T, ch *Channel, id string) (*Client, *recorderSink) {
	t.Helper()
	sink := &recorderSink{}
	c, err := ch.Connect(id, RoleAdmin, sink)
	if err != nil {
		t.Fatalf("Failed to connect admin %s: %v", id, err)
	}
	return c, sink
}

// route sends a raw JSON envelope through the channel as if it arrived on
// the given connection.
func route(t *testing.T, ch *Channel, from string, raw string) {
	t.Helper()
	if err := ch.RouteMessage(from, []byte(raw)); err != nil {
		t.Fatalf("RouteMessage from %s failed: %v", from, err)
	}
}
