// Package genstore tracks reload generations for asset ids.
//
// A generation is the invalidation token attached to every cached asset:
// it starts at 0, and each observed change to the backing bytes of an id
// bumps it by one. A cached derived value records the generation it was
// built from; any mismatch with the current generation marks it stale.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where reload generations live.
// Use Local (default) for in-process hot reload, or Redis to propagate
// invalidations across processes (e.g. an asset-server fleet sharing one
// editing pipeline).
type GenStore interface {
	// Snapshot returns the current generation for an id; missing => 0.
	Snapshot(ctx context.Context, id string) (uint64, error)
	// SnapshotMany returns generations for many ids; missing => 0.
	// The cache revalidates per id; this is for hosts checking a batch of
	// ids in one round-trip, e.g. a scene preloader deciding what to
	// re-load before a level transition.
	SnapshotMany(ctx context.Context, ids []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, id string) (uint64, error)
	// Cleanup prunes metadata for long-inactive ids if applicable.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
