// usage:
//
// import (
//
//	"log/slog"
//
//	"github.com/unkn0wn-root/bindcache"
//	"github.com/unkn0wn-root/bindcache/hooks/async"
//	"github.com/unkn0wn-root/bindcache/sloghooks"
//
// )
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{
//	    ReloadMarkedEvery: 10, // sample logs: ~every 10th reload mark
//	    SelfHealEvery:     1,  // log every cached-source self-heal
//	})
//
// hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
// defer hooks.Close()
//
//	cache, _ := bindcache.New(bindcache.Options{
//	    Source:    src,
//	    HotReload: true,
//	    Hooks:     hooks, // or `raw` if you don’t want async
//	})
package asynchook

import (
	"sync"

	"github.com/unkn0wn-root/bindcache"
)

type Hooks struct {
	inner bindcache.Hooks
	q     chan func()
	wg    sync.WaitGroup
	once  sync.Once
}

var _ bindcache.Hooks = (*Hooks)(nil)

func New(inner bindcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

func (h *Hooks) try(f func()) {
	select {
	case h.q <- f:
	default: // drop
	}
}

func (h *Hooks) BindFallback(kind, id string, err error) {
	h.try(func() { h.inner.BindFallback(kind, id, err) })
}
func (h *Hooks) ReloadMarked(id string, gen uint64) {
	h.try(func() { h.inner.ReloadMarked(id, gen) })
}
func (h *Hooks) WatchError(err error) { h.try(func() { h.inner.WatchError(err) }) }
func (h *Hooks) GenSnapshotError(id string, err error) {
	h.try(func() { h.inner.GenSnapshotError(id, err) })
}
func (h *Hooks) GenBumpError(id string, err error) {
	h.try(func() { h.inner.GenBumpError(id, err) })
}
func (h *Hooks) SourceSelfHeal(key, reason string) {
	h.try(func() { h.inner.SourceSelfHeal(key, reason) })
}
