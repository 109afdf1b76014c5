package orders

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileStore appends orders to a JSON-lines file. It is the sink of last resort,
// so it has no dependencies beyond the local filesystem.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Name() string { return "file" }

// Save appends one line holding the full order. Later lines for the same id
// supersede earlier ones. ctx is ignored so the write still happens after a
// slower sink has used up the deadline.
func (s *FileStore) Save(_ context.Context, o *Order) error {
	line, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encode order %s: %w", o.OrderID, err)
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create fallback dir: %w", err)
		}
	}

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open fallback file: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append order %s: %w", o.OrderID, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close fallback file: %w", err)
	}
	return nil
}

// Find returns the most recently written version of an order.
func (s *FileStore) Find(orderID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("open fallback file: %w", err)
	}
	defer f.Close()

	var found *Order
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		var o Order
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			// a torn trailing line from a crash is skipped
			continue
		}
		if o.OrderID == orderID {
			found = &o
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read fallback file: %w", err)
	}
	if found == nil {
		return nil, ErrNotFound
	}
	return found, nil
}
