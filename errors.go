package bindcache

import (
	"errors"
	"fmt"
)

// ErrNotFound reports that no cache entry or source bytes exist for an id.
// Concrete errors carry the kind and id and match this sentinel with
// errors.Is.
var ErrNotFound = errors.New("bindcache: asset not found")

// NotFoundError reports a miss for a specific (kind, id).
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("bindcache: %s asset %q not found", e.Kind, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// LoadError reports a raw-phase failure: the source yielded bytes but the
// loader rejected them, or the source itself failed with something other
// than a miss.
type LoadError struct {
	Kind string
	ID   string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("bindcache: load %s asset %q: %v", e.Kind, e.ID, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// BindError reports that the context-dependent bind step failed. When a
// previously bound value exists the cache serves it instead of returning
// this error; BindError reaches the caller only on a first bind.
type BindError struct {
	Kind string
	ID   string
	Err  error
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bindcache: bind %s asset %q: %v", e.Kind, e.ID, e.Err)
}

func (e *BindError) Unwrap() error { return e.Err }
