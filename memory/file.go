package memory

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore appends memory records as JSON lines to a single log file.
type FileStore struct {
	mu   sync.Mutex
	file *os.File
}

// NewFileStore opens (creating if needed) the memory log at path.
func NewFileStore(path string) (*FileStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create memory log directory: %w", err)
		}
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory log: %w", err)
	}
	return &FileStore{file: file}, nil
}

// Add appends one record. Each record is a single JSON line keyed by
// (key, value, from) plus a timestamp.
func (s *FileStore) Add(key string, value []byte, from string) error {
	rec := Record{Key: key, Value: value, From: from, At: time.Now()}
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal memory record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("memory log is closed")
	}
	if _, err := s.file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("failed to append memory record: %w", err)
	}
	return nil
}

// Close flushes and closes the log file. Idempotent.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

// ReadAll loads every record from a memory log file. Intended for analysis
// tooling and tests, not the hot path.
func ReadAll(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open memory log: %w", err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt memory record: %w", err)
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}
