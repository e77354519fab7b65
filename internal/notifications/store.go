package notifications

import (
	"sync"
	"time"

	"vigil/internal/model"
)

// Store keeps the most recent notifications in memory for the API.
// Bounded; oldest entries fall off when the limit is reached. The
// persistent record lives in storage, this is only the hot view.
type Store struct {
	mu    sync.RWMutex
	buf   []model.Notification
	limit int
}

func NewStore(limit int) *Store {
	if limit <= 0 {
		limit = 1000
	}
	return &Store{limit: limit}
}

func (s *Store) Add(n model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.buf) < s.limit {
		s.buf = append(s.buf, n)
		return
	}
	copy(s.buf, s.buf[1:])
	s.buf[len(s.buf)-1] = n
}

// List returns up to limit notifications, newest last. limit <= 0 returns
// everything.
func (s *Store) List(limit int) []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if limit <= 0 || limit > len(s.buf) {
		limit = len(s.buf)
	}
	out := make([]model.Notification, 0, limit)
	for i := len(s.buf) - limit; i < len(s.buf); i++ {
		out = append(out, s.buf[i])
	}
	return out
}

func (s *Store) Since(ts time.Time) []model.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Notification, 0)
	for _, n := range s.buf {
		if !n.CreatedAt.Before(ts) {
			out = append(out, n)
		}
	}
	return out
}

func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf = nil
}
