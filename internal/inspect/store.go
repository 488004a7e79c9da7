package inspect

import (
	"strconv"
	"sync"
	"time"
)

// Entry is one proxied exchange as seen by a redirect listener.
type Entry struct {
	ID string `json:"id"`

	StartedAt  time.Time `json:"started_at"`
	DurationMs int64     `json:"duration_ms"`

	LocalPort int    `json:"local_port"`
	Method    string `json:"method"`
	Path      string `json:"path"`
	Host      string `json:"host"`

	StatusCode int  `json:"status_code"`
	Rewritten  bool `json:"rewritten"`
	Upgrade    bool `json:"upgrade"`
}

type StoreConfig struct {
	MaxEntries int
}

// Store keeps a bounded, in-memory ring of recent exchanges across all
// listeners. Oldest entries fall off first.
type Store struct {
	mu sync.Mutex

	maxEntries int
	nextID     uint64
	entries    []Entry
}

func NewStore(cfg StoreConfig) *Store {
	maxEntries := cfg.MaxEntries
	if maxEntries <= 0 {
		maxEntries = 200
	}

	return &Store{
		maxEntries: maxEntries,
	}
}

func (s *Store) Add(e Entry) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	e.ID = strconv.FormatUint(s.nextID, 10)

	s.entries = append(s.entries, e)
	if len(s.entries) > s.maxEntries {
		s.entries = s.entries[len(s.entries)-s.maxEntries:]
	}

	return e
}

// List returns the stored entries newest-first.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
}
