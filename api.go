package bindcache

import (
	"time"

	"github.com/unkn0wn-root/bindcache/genstore"
	"github.com/unkn0wn-root/bindcache/source"
)

// WatchToken is the invalidation token of a cache entry. Two equal tokens
// observed across two reads mean no reload happened in between.
type WatchToken uint64

// Options tune the cache. Only Source is required.
type Options struct {
	// Required. The cache takes ownership and closes it on Close.
	Source source.Source

	// GenStore holds reload generations. nil => in-process store
	// (genstore.Local) with the cleanup settings below.
	GenStore genstore.GenStore

	Logger Logger // if nil, NopLogger is used
	Hooks  Hooks  // if nil, NopHooks is used

	// HotReload starts a filesystem watcher over Source.WatchRoots() and
	// makes Load revalidate entries against reload generations. Off, Load
	// behaves as LoadFast and bound values are final.
	HotReload bool

	// Extensions overrides the loader-declared extension sets per kind
	// name. Typically parsed from a config file; see ParseExtensions.
	Extensions ExtensionTable

	CleanupInterval time.Duration // local genstore sweep; 0 => 1h
	GenRetention    time.Duration // local genstore retention; 0 => 30d
}

// New builds a cache over the given source.
func New(opts Options) (*Cache, error) {
	return newCache(opts)
}

// Load returns the bound asset for id, creating the entry as needed: read
// bytes from the source, decode the raw value, bind it against ctx. With
// hot reload enabled the entry is revalidated against the id's reload
// generation on every call; otherwise this is LoadFast.
//
// Fails with an error matching ErrNotFound when no source root yields
// bytes for any accepted extension, and with a BindError when a first
// bind fails. Re-bind failures after a reload are absorbed: the previous
// bound value is served and the error goes to the logger and hooks.
func Load[C, R, B any](c *Cache, k Kind[C, R, B], ctx C, id string) (B, error) {
	if !c.reload {
		return loadFast(c, k, ctx, id)
	}
	return loadWatched(c, k, ctx, id)
}

// LoadFast is Load without any reload bookkeeping: once bound, the value
// is returned as-is for the lifetime of the cache regardless of changes
// to the backing store.
func LoadFast[C, R, B any](c *Cache, k Kind[C, R, B], ctx C, id string) (B, error) {
	return loadFast(c, k, ctx, id)
}

// Get is Load without the first-time load: it fails with an error
// matching ErrNotFound when no entry holds a value for (kind, id) yet,
// and never reads the source. A cached raw value that was never bound
// (or re-decoded after a reload) is bound against ctx on the way out.
func Get[C, R, B any](c *Cache, k Kind[C, R, B], ctx C, id string) (B, error) {
	return getCached(c, k, ctx, id)
}

// Contains reports whether an entry holds a raw or bound value for
// (kind, id). No side effects.
func Contains[C, R, B any](c *Cache, k Kind[C, R, B], id string) bool {
	e, ok := c.lookup(entryKey{kind: k.Name, id: id})
	if !ok {
		return false
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasRaw || e.hasBound
}

// Watch returns the current invalidation token for (kind, id), or
// ok=false when no entry exists. With hot reload disabled an existing
// entry always reports the zero token.
func Watch[C, R, B any](c *Cache, k Kind[C, R, B], id string) (WatchToken, bool) {
	if !Contains(c, k, id) {
		return 0, false
	}
	if !c.reload {
		return 0, true
	}
	return WatchToken(c.snapshot(id)), true
}
