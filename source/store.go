package source

import (
	"context"
	"time"

	"github.com/unkn0wn-root/bindcache/internal/util"
	"github.com/unkn0wn-root/bindcache/provider"
)

// Store serves assets straight out of a provider byte store. With a redis
// provider this is a remote root a build pipeline publishes into; keys are
// the slash-separated asset paths under the configured prefix.
//
// Byte stores cannot enumerate, so ReadDir reports ErrNoListing and a
// layered parent simply skips this root when aggregating listings.
type Store struct {
	p       provider.Provider
	prefix  string
	timeout time.Duration
}

var _ Source = (*Store)(nil)

// NewStore wraps a provider as a source root. prefix namespaces the keys
// ("assets/" is a sensible choice); timeout bounds each remote read,
// 0 means no bound.
func NewStore(p provider.Provider, prefix string, timeout time.Duration) *Store {
	return &Store{p: p, prefix: prefix, timeout: timeout}
}

func (s *Store) ctx() (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.Background(), func() {}
	}
	return context.WithTimeout(context.Background(), s.timeout)
}

func (s *Store) Read(id, ext string) ([]byte, error) {
	ctx, cancel := s.ctx()
	defer cancel()
	b, ok, err := s.p.Get(ctx, s.prefix+util.IDToPath(id, ext))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return b, nil
}

func (s *Store) ReadDir(string, func(Entry)) error { return ErrNoListing }

func (s *Store) Exists(e Entry) bool {
	if e.Dir {
		return false
	}
	ctx, cancel := s.ctx()
	defer cancel()
	_, ok, err := s.p.Get(ctx, s.prefix+e.Path())
	return err == nil && ok
}

func (s *Store) WatchRoots() []string { return nil }

// Close releases the underlying provider.
func (s *Store) Close() error {
	return s.p.Close(context.Background())
}
