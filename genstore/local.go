package genstore

import (
	"context"
	"sync"
	"time"
)

type localEntry struct {
	Gen      uint64
	BumpedAt time.Time
}

// Local keeps reload generations in-process (default).
// An optional cleanup loop prunes ids that have not been bumped within the
// retention window; a pruned id reads as generation 0 again, which at worst
// costs one spurious re-bind on the next access.
type Local struct {
	mu     sync.RWMutex
	gens   map[string]localEntry
	ticker *time.Ticker
	stopCh chan struct{}
	wg     sync.WaitGroup

	retention time.Duration
}

var _ GenStore = (*Local)(nil)

func NewLocal(cleanupInterval, retention time.Duration) *Local {
	s := &Local{
		gens:      make(map[string]localEntry),
		retention: retention,
	}
	if cleanupInterval > 0 && retention > 0 {
		s.ticker = time.NewTicker(cleanupInterval)
		s.stopCh = make(chan struct{})
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for {
				select {
				case <-s.ticker.C:
					s.Cleanup(retention)
				case <-s.stopCh:
					return
				}
			}
		}()
	}
	return s
}

func (s *Local) Snapshot(_ context.Context, id string) (uint64, error) {
	s.mu.RLock()
	e, ok := s.gens[id]
	s.mu.RUnlock()
	if !ok {
		return 0, nil
	}
	return e.Gen, nil
}

// SnapshotMany acquires the read lock once and reads all requested ids.
func (s *Local) SnapshotMany(_ context.Context, ids []string) (map[string]uint64, error) {
	out := make(map[string]uint64, len(ids))
	s.mu.RLock()
	for _, id := range ids {
		out[id] = s.gens[id].Gen // zero value (0) if missing
	}
	s.mu.RUnlock()
	return out, nil
}

func (s *Local) Bump(_ context.Context, id string) (uint64, error) {
	now := time.Now()
	s.mu.Lock()
	e := s.gens[id]
	e.Gen++
	e.BumpedAt = now
	s.gens[id] = e
	s.mu.Unlock()
	return e.Gen, nil
}

func (s *Local) Cleanup(retention time.Duration) {
	if retention <= 0 {
		return
	}
	cutoff := time.Now().Add(-retention)

	s.mu.Lock()
	for id, e := range s.gens {
		if !e.BumpedAt.IsZero() && e.BumpedAt.Before(cutoff) {
			delete(s.gens, id)
		}
	}
	s.mu.Unlock()
}

func (s *Local) Close(_ context.Context) error {
	if s.stopCh != nil {
		close(s.stopCh)
		if s.ticker != nil {
			s.ticker.Stop() // stop ticker before waiting
		}
		s.wg.Wait()
	}
	return nil
}
