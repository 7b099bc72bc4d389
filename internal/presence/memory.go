package presence

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/roomgate/internal/domain"
	"github.com/cwrk-planet/roomgate/pkg/logger"
)

// MemoryStore — TTL-карта в памяти процесса. Просроченные записи выбрасываются
// лениво при чтении и периодически через Sweep.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[domain.UserID]time.Time // uid -> expiresAt
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[domain.UserID]time.Time),
		now:     time.Now,
	}
}

// WithClock подменяет часы (тесты).
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Set(_ context.Context, uid domain.UserID, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[uid] = s.now().Add(ttl)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Touch(_ context.Context, uid domain.UserID, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	exp, ok := s.entries[uid]
	if !ok {
		return false, nil
	}
	if !exp.After(now) {
		delete(s.entries, uid)
		return false, nil
	}
	s.entries[uid] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Delete(_ context.Context, uid domain.UserID) error {
	s.mu.Lock()
	delete(s.entries, uid)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Exists(_ context.Context, uid domain.UserID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.entries[uid]
	if !ok {
		return false, nil
	}
	if !exp.After(s.now()) {
		delete(s.entries, uid)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) Members(_ context.Context) ([]domain.UserID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	out := make([]domain.UserID, 0, len(s.entries))
	for uid, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, uid)
			continue
		}
		out = append(out, uid)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	m, err := s.Members(ctx)
	return len(m), err
}

// Sweep удаляет просроченные записи, возвращает сколько удалено.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for uid, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, uid)
			n++
		}
	}
	return n
}

// Run периодически чистит карту до отмены ctx.
func (s *MemoryStore) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Ctx(ctx).Debug("presence.sweep", slog.Int("expired", n))
			}
		}
	}
}
