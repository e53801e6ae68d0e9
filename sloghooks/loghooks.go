package sloghooks

import (
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/bindcache"
)

type Options struct {
	// Sampling to avoid floods during bulk edits; 0/1 = log all.
	ReloadMarkedEvery uint64
	SelfHealEvery     uint64
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	reloadCtr   atomic.Uint64
	selfHealCtr atomic.Uint64
}

var _ bindcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) BindFallback(kind, id string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("bindcache.bind_fallback",
		"kind", kind,
		"id", id,
		"err", err)
}

func (h *Hooks) ReloadMarked(id string, gen uint64) {
	if h.l == nil || !sample(h.opts.ReloadMarkedEvery, &h.reloadCtr) {
		return
	}
	h.l.Debug("bindcache.reload_marked",
		"id", id,
		"gen", gen)
}

func (h *Hooks) WatchError(err error) {
	if h.l == nil {
		return
	}
	h.l.Error("bindcache.watch_error",
		"err", err)
}

func (h *Hooks) GenSnapshotError(id string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("bindcache.gen_snapshot_error",
		"id", id,
		"err", err)
}

func (h *Hooks) GenBumpError(id string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("bindcache.gen_bump_error",
		"id", id,
		"err", err)
}

func (h *Hooks) SourceSelfHeal(key, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("bindcache.source_self_heal",
		"key", key,
		"reason", reason)
}
