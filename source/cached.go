package source

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/unkn0wn-root/bindcache/genstore"
	"github.com/unkn0wn-root/bindcache/internal/util"
	"github.com/unkn0wn-root/bindcache/internal/wire"
	"github.com/unkn0wn-root/bindcache/provider"
)

// Cached is a read-through byte cache in front of another source. Entries
// are framed with the id's reload generation at write time; a read whose
// frame no longer matches the current generation is dropped and refetched,
// so a generation bump invalidates cached bytes with no extra bookkeeping.
// Corrupt frames self-heal the same way.
type Cached struct {
	inner        Source
	p            provider.Provider
	gens         genstore.GenStore
	ttl          time.Duration
	onSelfHeal   func(key, reason string)
	userSelfHeal bool
}

var _ Source = (*Cached)(nil)

type CachedConfig struct {
	// Inner is the source of truth. Required.
	Inner Source
	// Provider stores the cached bytes. Required.
	Provider provider.Provider
	// Gens supplies current reload generations for validation. When nil,
	// cached entries are validated for integrity only and never expire by
	// generation; suitable only with hot reload off.
	Gens genstore.GenStore
	// TTL for cached entries; 0 lets the provider decide.
	TTL time.Duration
	// OnSelfHeal is called when a corrupt or stale entry is dropped.
	// reason is "corrupt" or "gen_mismatch". Optional; when nil and the
	// source is handed to a cache, the cache installs its own hook
	// (see SetOnSelfHeal).
	OnSelfHeal func(key, reason string)
}

func NewCached(cfg CachedConfig) (*Cached, error) {
	if cfg.Inner == nil {
		return nil, errors.New("source: cached inner source is required")
	}
	if cfg.Provider == nil {
		return nil, errors.New("source: cached provider is required")
	}
	c := &Cached{
		inner:        cfg.Inner,
		p:            cfg.Provider,
		gens:         cfg.Gens,
		ttl:          cfg.TTL,
		onSelfHeal:   cfg.OnSelfHeal,
		userSelfHeal: cfg.OnSelfHeal != nil,
	}
	if c.onSelfHeal == nil {
		c.onSelfHeal = func(string, string) {}
	}
	return c, nil
}

// SetOnSelfHeal installs the self-heal callback unless the config supplied
// one; an explicit OnSelfHeal always wins. The owning cache calls this at
// construction to route self-heal events into its Hooks. Not safe to call
// concurrently with reads.
func (c *Cached) SetOnSelfHeal(fn func(key, reason string)) {
	if c.userSelfHeal || fn == nil {
		return
	}
	c.onSelfHeal = fn
}

func (c *Cached) gen(id string) uint64 {
	if c.gens == nil {
		return 0
	}
	g, err := c.gens.Snapshot(context.Background(), id)
	if err != nil {
		// conservative: treat as 0; a mismatch just refetches from inner
		return 0
	}
	return g
}

func (c *Cached) Read(id, ext string) ([]byte, error) {
	ctx := context.Background()
	key := "src:" + util.IDToPath(id, ext)
	cur := c.gen(id)

	if raw, ok, err := c.p.Get(ctx, key); err == nil && ok {
		g, payload, derr := wire.DecodeEntry(raw)
		switch {
		case derr != nil:
			_ = c.p.Del(ctx, key)
			c.onSelfHeal(key, "corrupt")
		case g != cur:
			_ = c.p.Del(ctx, key)
			c.onSelfHeal(key, "gen_mismatch")
		default:
			return payload, nil
		}
	}

	b, err := c.inner.Read(id, ext)
	if err != nil {
		return nil, err
	}
	_, _ = c.p.Set(ctx, key, wire.EncodeEntry(cur, b), int64(len(b)), c.ttl)
	return b, nil
}

func (c *Cached) ReadDir(id string, fn func(Entry)) error {
	return c.inner.ReadDir(id, fn)
}

func (c *Cached) Exists(e Entry) bool { return c.inner.Exists(e) }

func (c *Cached) WatchRoots() []string { return c.inner.WatchRoots() }

// Close releases the provider and the inner source.
func (c *Cached) Close() error {
	err := c.p.Close(context.Background())
	if closer, ok := c.inner.(io.Closer); ok {
		if ierr := closer.Close(); err == nil {
			err = ierr
		}
	}
	return err
}
