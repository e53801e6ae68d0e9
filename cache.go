package bindcache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/unkn0wn-root/bindcache/genstore"
	"github.com/unkn0wn-root/bindcache/source"
)

const (
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

type entryKey struct {
	kind string
	id   string
}

// entry is the lazy cell behind one (kind, id): the raw value with the
// generation it was decoded at, and the bound value with the generation it
// was built from. A bound value whose generation trails the current one is
// stale and re-binds on access.
//
// The lock covers only reads and the bind critical section; raw decoding
// runs outside it so loaders can re-enter the cache.
type entry struct {
	mu sync.RWMutex

	raw    any
	rawGen uint64
	hasRaw bool

	bound    any
	boundGen uint64
	hasBound bool
}

// Cache stores two-phase assets keyed by (kind, id). Construct with New;
// access through the generic Load/LoadFast/Get/Contains/Watch functions.
type Cache struct {
	src    source.Source
	gens   genstore.GenStore
	log    Logger
	hooks  Hooks
	exts   ExtensionTable
	reload bool

	ownGens bool // close gens only if we created it

	mu      sync.RWMutex
	entries map[entryKey]*entry

	sf singleflight.Group

	w         *watcher
	closeOnce sync.Once
	closeErr  error
}

func newCache(opts Options) (*Cache, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("bindcache: source is required")
	}

	c := &Cache{
		src:     opts.Source,
		reload:  opts.HotReload,
		exts:    opts.Extensions,
		entries: make(map[entryKey]*entry),
	}

	c.log = coalesce[Logger](opts.Logger, NopLogger{})
	c.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})

	// route cached-source self-heal events into our hooks
	if sh, ok := opts.Source.(interface{ SetOnSelfHeal(func(string, string)) }); ok {
		sh.SetOnSelfHeal(c.hooks.SourceSelfHeal)
	}

	if opts.GenStore != nil {
		c.gens = opts.GenStore
	} else {
		sweep := coalesce[time.Duration](opts.CleanupInterval, defaultSweep)
		retention := coalesce[time.Duration](opts.GenRetention, defaultGenRetention)
		c.gens = genstore.NewLocal(sweep, retention)
		c.ownGens = true
	}

	if c.reload {
		w, err := newWatcher(c, opts.Source.WatchRoots())
		if err != nil {
			if c.ownGens {
				_ = c.gens.Close(context.Background())
			}
			return nil, fmt.Errorf("bindcache: start watcher: %w", err)
		}
		c.w = w
	}
	return c, nil
}

// HotReload reports whether Load revalidates entries against reload
// generations.
func (c *Cache) HotReload() bool { return c.reload }

// Invalidate bumps the reload generation for id, marking the cached
// entries of every kind for that id stale. The filesystem watcher calls
// this on changes; hosts may call it to force a re-bind.
func (c *Cache) Invalidate(id string) uint64 {
	g, err := c.gens.Bump(context.Background(), id)
	if err != nil {
		c.log.Error("gen bump failed", Fields{"id": id, "err": err})
		c.hooks.GenBumpError(id, err)
		return 0
	}
	c.log.Debug("reload marked", Fields{"id": id, "gen": g})
	c.hooks.ReloadMarked(id, g)
	return g
}

// Close stops the watcher and releases the generation store and the source.
// The cache owns its source for its lifetime; bound values that escaped via
// Load remain valid, everything else must not be used afterwards.
func (c *Cache) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		var errs []error
		if c.w != nil {
			if err := c.w.close(); err != nil {
				errs = append(errs, err)
			}
		}
		if c.ownGens {
			if err := c.gens.Close(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		if closer, ok := c.src.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

func (c *Cache) entry(k entryKey) *entry {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	if ok {
		return e
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[k]; ok {
		return e
	}
	e = &entry{}
	c.entries[k] = e
	return e
}

func (c *Cache) lookup(k entryKey) (*entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[k]
	c.mu.RUnlock()
	return e, ok
}

func (c *Cache) snapshot(id string) uint64 {
	g, err := c.gens.Snapshot(context.Background(), id)
	if err != nil {
		// conservative: 0 reads as "initial generation"; entries bound at a
		// later generation re-bind once and recover
		c.log.Warn("gen snapshot failed", Fields{"id": id, "err": err})
		c.hooks.GenSnapshotError(id, err)
		return 0
	}
	return g
}

func (c *Cache) extensionsFor(kind string, declared []string) []string {
	if override, ok := c.exts[kind]; ok && len(override) > 0 {
		return override
	}
	return declared
}

// readSource resolves an id against the source, trying each accepted
// extension in order. Returns the bytes and the extension that matched.
func (c *Cache) readSource(kind, id string, exts []string) ([]byte, string, error) {
	if len(exts) == 0 {
		return nil, "", fmt.Errorf("bindcache: kind %q declares no extensions", kind)
	}
	var lastErr error
	for _, ext := range exts {
		b, err := c.src.Read(id, ext)
		if err == nil {
			return b, ext, nil
		}
		if !errors.Is(err, source.ErrNotFound) {
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, "", &LoadError{Kind: kind, ID: id, Err: lastErr}
	}
	return nil, "", &NotFoundError{Kind: kind, ID: id}
}

// rawFor returns the raw value for id at the given generation, decoding
// from source if the cached one is missing or from an older generation.
// Concurrent callers for the same (kind, id, gen) share one decode; the
// decode itself runs outside the entry lock, so loaders may issue nested
// cache calls.
func rawFor[C, R, B any](c *Cache, k Kind[C, R, B], e *entry, id string, gen uint64) (R, error) {
	var zero R

	e.mu.RLock()
	if e.hasRaw && e.rawGen == gen {
		r := e.raw.(R)
		e.mu.RUnlock()
		return r, nil
	}
	e.mu.RUnlock()

	key := k.Name + "\x00" + id + "\x00" + strconv.FormatUint(gen, 10)
	v, err, _ := c.sf.Do(key, func() (any, error) {
		data, ext, err := c.readSource(k.Name, id, c.extensionsFor(k.Name, k.Loader.Extensions))
		if err != nil {
			return nil, err
		}
		r, err := k.Loader.Decode(data, ext)
		if err != nil {
			return nil, &LoadError{Kind: k.Name, ID: id, Err: err}
		}
		e.mu.Lock()
		if !e.hasRaw || gen >= e.rawGen { // never regress to an older generation
			e.raw, e.rawGen, e.hasRaw = r, gen, true
		}
		e.mu.Unlock()
		return r, nil
	})
	if err != nil {
		return zero, err
	}
	return v.(R), nil
}

// loadWatched is the reload-aware load path: revalidate the bound value
// against the id's current generation, refresh the raw value if needed,
// and re-bind at most once per generation. Raw or bind failures fall back
// to a previously bound value instead of surfacing, so a broken live edit
// never destroys a working asset.
func loadWatched[C, R, B any](c *Cache, k Kind[C, R, B], ctx C, id string) (B, error) {
	var zero B
	e := c.entry(entryKey{kind: k.Name, id: id})
	cur := c.snapshot(id)

	e.mu.RLock()
	if e.hasBound && e.boundGen == cur {
		b := e.bound.(B)
		e.mu.RUnlock()
		return b, nil
	}
	e.mu.RUnlock()

	raw, rawErr := rawFor(c, k, e, id, cur)

	e.mu.Lock()
	defer e.mu.Unlock()

	// another caller may have bound this generation while we decoded
	if e.hasBound && e.boundGen == cur {
		return e.bound.(B), nil
	}

	if rawErr != nil {
		if e.hasBound {
			c.log.Warn("raw reload failed; serving previous bound value",
				Fields{"kind": k.Name, "id": id, "err": rawErr})
			c.hooks.BindFallback(k.Name, id, rawErr)
			return e.bound.(B), nil
		}
		return zero, rawErr
	}

	b, err := k.Bind(ctx, raw)
	if err != nil {
		if e.hasBound {
			c.log.Warn("bind failed; serving previous bound value",
				Fields{"kind": k.Name, "id": id, "err": err})
			c.hooks.BindFallback(k.Name, id, err)
			return e.bound.(B), nil
		}
		return zero, &BindError{Kind: k.Name, ID: id, Err: err}
	}

	e.bound, e.boundGen, e.hasBound = b, cur, true
	return b, nil
}

// loadFast never consults reload generations: once bound, the value is
// final for the lifetime of the cache.
func loadFast[C, R, B any](c *Cache, k Kind[C, R, B], ctx C, id string) (B, error) {
	var zero B
	e := c.entry(entryKey{kind: k.Name, id: id})

	e.mu.RLock()
	if e.hasBound {
		b := e.bound.(B)
		e.mu.RUnlock()
		return b, nil
	}
	e.mu.RUnlock()

	raw, rawErr := rawFor(c, k, e, id, 0)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasBound {
		return e.bound.(B), nil
	}
	if rawErr != nil {
		return zero, rawErr
	}

	b, err := k.Bind(ctx, raw)
	if err != nil {
		return zero, &BindError{Kind: k.Name, ID: id, Err: err}
	}

	e.bound, e.boundGen, e.hasBound = b, 0, true
	return b, nil
}

// getCached serves from the entry alone: it binds a cached raw value if
// needed but never reads the source.
func getCached[C, R, B any](c *Cache, k Kind[C, R, B], ctx C, id string) (B, error) {
	var zero B
	e, ok := c.lookup(entryKey{kind: k.Name, id: id})
	if !ok {
		return zero, &NotFoundError{Kind: k.Name, ID: id}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.hasBound && (!e.hasRaw || e.boundGen == e.rawGen) {
		return e.bound.(B), nil
	}
	if !e.hasRaw {
		if e.hasBound {
			return e.bound.(B), nil
		}
		return zero, &NotFoundError{Kind: k.Name, ID: id}
	}

	b, err := k.Bind(ctx, e.raw.(R))
	if err != nil {
		if e.hasBound {
			c.hooks.BindFallback(k.Name, id, err)
			return e.bound.(B), nil
		}
		return zero, &BindError{Kind: k.Name, ID: id, Err: err}
	}

	e.bound, e.boundGen, e.hasBound = b, e.rawGen, true
	return b, nil
}
