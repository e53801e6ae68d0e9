package bindcache

import "github.com/unkn0wn-root/bindcache/loader"

// BindFunc derives the final usable asset from a raw value and the host
// runtime context (a gpu device, an audio engine, a font registry).
type BindFunc[C, R, B any] func(ctx C, raw R) (B, error)

// Kind describes one two-phase asset kind.
//
// The raw phase (Loader) is pure and context-free; the bind phase runs
// against the host context and executes at most once per entry per reload
// generation. Distinct kinds may share an id without collision: the cache
// key is (Kind.Name, id).
type Kind[C, R, B any] struct {
	// Name tags the kind's namespace inside the cache, e.g. "image".
	// Also the lookup key for extension-table overrides.
	Name string

	// Loader decodes source bytes into the raw value. A decode func for a
	// compound kind may capture the cache and load referenced sub-assets;
	// no entry lock is held while it runs.
	Loader loader.Loader[R]

	// Bind builds the bound asset. It runs with exclusive access to the
	// entry and must not re-enter the cache for its own (kind, id).
	Bind BindFunc[C, R, B]
}
