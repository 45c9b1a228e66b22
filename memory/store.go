// Package memory provides the shared memory-log collaborator: a narrow
// append-only store the channel writes room-wide state records into.
//
// Two backends are provided: a file-backed store appending JSON lines, and a
// Redis-backed store pushing records onto a list. Both implement the
// channel.MemoryStore interface.
package memory

import (
	"encoding/json"
	"time"
)

// Record is one appended memory entry.
type Record struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value,omitempty"`
	From  string          `json:"from"`
	At    time.Time       `json:"at"`
}

// Nop is a memory store that discards everything. Used when no memory log is
// configured.
type Nop struct{}

func (Nop) Add(string, []byte, string) error { return nil }
func (Nop) Close() error                     { return nil }
