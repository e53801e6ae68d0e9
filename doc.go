// Package bindcache implements a concurrency-safe cache of lazily loaded,
// two-phase assets. Loading splits into a pure raw phase (bytes -> decoded
// value) and a bind phase (decoded value + host context -> usable asset);
// the bind runs at most once per entry per reload generation. Failed
// re-binds after a live edit fall back to the previous bound value.
//
// Components:
//   - Kind[C, R, B]: one asset family (loader + bind function + name).
//   - source.Source: where bytes come from. Layered multi-root lookup over
//     directories, zip archives and provider-backed stores.
//   - genstore.GenStore: reload generation counter per asset id. Local
//     (in-process) by default, optional Redis implementation.
//   - Logger / Hooks: ambient observability (see log/ and sloghooks).
//
// Ids are dot-separated and map to source paths:
//
//	"ui.hud.health" + ext "png" -> "ui/hud/health.png"
//
// Reload pattern:
//
//	obs, _ := bindcache.Watch(c, kind, id) // token from the last read
//	// ... file changes on disk; the watcher bumps the generation ...
//	cur, _ := bindcache.Watch(c, kind, id) // obs != cur => re-load
//	v, _ := bindcache.Load(c, kind, gpuCtx, id)
package bindcache
