package bindcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/bindcache/internal/util"
	"github.com/unkn0wn-root/bindcache/loader"
	"github.com/unkn0wn-root/bindcache/source"
)

type memSource struct {
	mu    sync.Mutex
	files map[string][]byte // slash path -> bytes
	reads atomic.Int64
	fail  error // non-nil => every Read fails with this
}

var _ source.Source = (*memSource)(nil)

func newMemSource() *memSource { return &memSource{files: make(map[string][]byte)} }

func (s *memSource) put(id, ext string, b []byte) {
	s.mu.Lock()
	s.files[util.IDToPath(id, ext)] = b
	s.mu.Unlock()
}

func (s *memSource) Read(id, ext string) ([]byte, error) {
	s.reads.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return nil, s.fail
	}
	b, ok := s.files[util.IDToPath(id, ext)]
	if !ok {
		return nil, source.ErrNotFound
	}
	return b, nil
}

func (s *memSource) ReadDir(id string, fn func(source.Entry)) error { return nil }
func (s *memSource) Exists(e source.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.files[e.Path()]
	return ok
}
func (s *memSource) WatchRoots() []string { return nil }

// memProvider is a minimal byte store for cached-source tests.
type memProvider struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemProvider() *memProvider { return &memProvider{m: make(map[string][]byte)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	b, ok := p.m[key]
	return b, ok, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, _ time.Duration) (bool, error) {
	p.mu.Lock()
	p.m[key] = value
	p.mu.Unlock()
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	delete(p.m, key)
	p.mu.Unlock()
	return nil
}

func (p *memProvider) Close(context.Context) error { return nil }

type recHooks struct {
	NopHooks
	mu        sync.Mutex
	fallbacks []string
	marks     []string
	selfHeals []string
}

func (h *recHooks) BindFallback(kind, id string, err error) {
	h.mu.Lock()
	h.fallbacks = append(h.fallbacks, kind+"/"+id)
	h.mu.Unlock()
}

func (h *recHooks) ReloadMarked(id string, gen uint64) {
	h.mu.Lock()
	h.marks = append(h.marks, fmt.Sprintf("%s@%d", id, gen))
	h.mu.Unlock()
}

func (h *recHooks) SourceSelfHeal(key, reason string) {
	h.mu.Lock()
	h.selfHeals = append(h.selfHeals, key+"/"+reason)
	h.mu.Unlock()
}

func (h *recHooks) fallbackCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.fallbacks)
}

// textKind binds a decoded string against a prefix context; binds counts
// invocations and failNext makes the next bind fail once.
type textBinder struct {
	binds    atomic.Int64
	failNext atomic.Bool
}

func (b *textBinder) kind() Kind[string, string, string] {
	return Kind[string, string, string]{
		Name:   "text",
		Loader: loader.Strings("txt"),
		Bind: func(prefix, raw string) (string, error) {
			b.binds.Add(1)
			if b.failNext.CompareAndSwap(true, false) {
				return "", errors.New("device lost")
			}
			return prefix + raw, nil
		},
	}
}

func newTestCache(t *testing.T, src source.Source, mod func(*Options)) *Cache {
	t.Helper()
	opts := Options{Source: src}
	if mod != nil {
		mod(&opts)
	}
	c, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { c.Close(context.Background()) })
	return c
}

// ==============================
// Load paths
// ==============================

func TestLoadBindsOnceUnderConcurrency(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("health"))
	c := newTestCache(t, src, nil)

	var b textBinder
	k := b.kind()

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := Load(c, k, "ui:", "ui.hud")
			if err == nil && v != "ui:health" {
				err = fmt.Errorf("got %q", v)
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
	}
	if got := b.binds.Load(); got != 1 {
		t.Fatalf("binds = %d, want 1", got)
	}
}

func TestLoadNotFound(t *testing.T) {
	c := newTestCache(t, newMemSource(), nil)
	var b textBinder

	_, err := Load(c, b.kind(), "", "missing.asset")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	var nf *NotFoundError
	if !errors.As(err, &nf) || nf.ID != "missing.asset" {
		t.Fatalf("err = %v, want NotFoundError for the id", err)
	}
}

func TestFirstBindErrorNotCached(t *testing.T) {
	src := newMemSource()
	src.put("sfx.jump", "txt", []byte("boing"))
	c := newTestCache(t, src, nil)

	var b textBinder
	k := b.kind()
	b.failNext.Store(true)

	_, err := Load(c, k, "", "sfx.jump")
	var be *BindError
	if !errors.As(err, &be) {
		t.Fatalf("err = %v, want BindError", err)
	}

	// a later call retries the bind instead of serving the failure
	v, err := Load(c, k, "", "sfx.jump")
	if err != nil || v != "boing" {
		t.Fatalf("retry: v=%q err=%v", v, err)
	}
	if got := b.binds.Load(); got != 2 {
		t.Fatalf("binds = %d, want 2", got)
	}
}

func TestDecodeErrorSurfacesAsLoadError(t *testing.T) {
	src := newMemSource()
	src.put("ui.bad", "txt", []byte("x"))
	c := newTestCache(t, src, nil)

	k := Kind[string, string, string]{
		Name: "text",
		Loader: loader.Loader[string]{
			Extensions: []string{"txt"},
			Decode:     func([]byte, string) (string, error) { return "", errors.New("garbled") },
		},
		Bind: func(_, raw string) (string, error) { return raw, nil },
	}

	_, err := Load(c, k, "", "ui.bad")
	var le *LoadError
	if !errors.As(err, &le) || !strings.Contains(err.Error(), "garbled") {
		t.Fatalf("err = %v, want LoadError wrapping the decode failure", err)
	}
}

func TestMultiExtensionProbe(t *testing.T) {
	src := newMemSource()
	src.put("ui.icon", "jpg", []byte("jpeg bytes"))
	c := newTestCache(t, src, nil)

	k := Kind[string, string, string]{
		Name:   "picture",
		Loader: loader.Strings("png", "jpg"),
		Bind:   func(_, raw string) (string, error) { return raw, nil },
	}

	v, err := Load(c, k, "", "ui.icon")
	if err != nil || v != "jpeg bytes" {
		t.Fatalf("v=%q err=%v", v, err)
	}
}

// ==============================
// Reload and fallback
// ==============================

func TestInvalidateRebindsOnce(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	hooks := &recHooks{}
	c := newTestCache(t, src, func(o *Options) {
		o.HotReload = true
		o.Hooks = hooks
	})

	var b textBinder
	k := b.kind()

	if v, err := Load(c, k, "", "ui.hud"); err != nil || v != "v1" {
		t.Fatalf("initial: v=%q err=%v", v, err)
	}
	tok1, ok := Watch(c, k, "ui.hud")
	if !ok {
		t.Fatalf("Watch: no entry after Load")
	}

	src.put("ui.hud", "txt", []byte("v2"))
	c.Invalidate("ui.hud")

	tok2, _ := Watch(c, k, "ui.hud")
	if tok1 == tok2 {
		t.Fatalf("token unchanged across invalidation")
	}

	for i := 0; i < 3; i++ {
		if v, err := Load(c, k, "", "ui.hud"); err != nil || v != "v2" {
			t.Fatalf("after reload: v=%q err=%v", v, err)
		}
	}
	if got := b.binds.Load(); got != 2 {
		t.Fatalf("binds = %d, want 2 (one per generation)", got)
	}
}

func TestBindFallbackServesPreviousValue(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	hooks := &recHooks{}
	c := newTestCache(t, src, func(o *Options) {
		o.HotReload = true
		o.Hooks = hooks
	})

	var b textBinder
	k := b.kind()

	if _, err := Load(c, k, "", "ui.hud"); err != nil {
		t.Fatalf("initial: %v", err)
	}

	src.put("ui.hud", "txt", []byte("v2"))
	c.Invalidate("ui.hud")
	b.failNext.Store(true)

	v, err := Load(c, k, "", "ui.hud")
	if err != nil || v != "v1" {
		t.Fatalf("fallback: v=%q err=%v, want previous value without error", v, err)
	}
	if hooks.fallbackCount() != 1 {
		t.Fatalf("fallbacks = %d, want 1", hooks.fallbackCount())
	}

	// next access re-binds the pending generation successfully
	v, err = Load(c, k, "", "ui.hud")
	if err != nil || v != "v2" {
		t.Fatalf("recovery: v=%q err=%v", v, err)
	}
}

func TestRawReloadFailureServesPreviousValue(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	hooks := &recHooks{}
	c := newTestCache(t, src, func(o *Options) {
		o.HotReload = true
		o.Hooks = hooks
	})

	var b textBinder
	k := b.kind()

	if _, err := Load(c, k, "", "ui.hud"); err != nil {
		t.Fatalf("initial: %v", err)
	}

	c.Invalidate("ui.hud")
	src.mu.Lock()
	src.fail = errors.New("disk detached")
	src.mu.Unlock()

	v, err := Load(c, k, "", "ui.hud")
	if err != nil || v != "v1" {
		t.Fatalf("fallback: v=%q err=%v", v, err)
	}
	if hooks.fallbackCount() != 1 {
		t.Fatalf("fallbacks = %d, want 1", hooks.fallbackCount())
	}
}

func TestLoadFastIgnoresInvalidation(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	c := newTestCache(t, src, func(o *Options) { o.HotReload = true })

	var b textBinder
	k := b.kind()

	if v, err := LoadFast(c, k, "", "ui.hud"); err != nil || v != "v1" {
		t.Fatalf("initial: v=%q err=%v", v, err)
	}

	src.put("ui.hud", "txt", []byte("v2"))
	c.Invalidate("ui.hud")

	v, err := LoadFast(c, k, "", "ui.hud")
	if err != nil || v != "v1" {
		t.Fatalf("LoadFast after invalidation: v=%q err=%v, want pinned v1", v, err)
	}
	if got := b.binds.Load(); got != 1 {
		t.Fatalf("binds = %d, want 1", got)
	}
}

// ==============================
// Get / Contains / Watch
// ==============================

func TestGetBeforeLoad(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	c := newTestCache(t, src, nil)

	var b textBinder
	k := b.kind()

	if _, err := Get(c, k, "", "ui.hud"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get before Load: err = %v, want ErrNotFound", err)
	}
	if src.reads.Load() != 0 {
		t.Fatalf("Get touched the source (%d reads)", src.reads.Load())
	}

	if _, err := Load(c, k, "", "ui.hud"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	reads := src.reads.Load()

	v, err := Get(c, k, "", "ui.hud")
	if err != nil || v != "v1" {
		t.Fatalf("Get after Load: v=%q err=%v", v, err)
	}
	if src.reads.Load() != reads {
		t.Fatalf("Get touched the source")
	}
}

func TestContainsAndWatch(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	c := newTestCache(t, src, nil)

	var b textBinder
	k := b.kind()

	if Contains(c, k, "ui.hud") {
		t.Fatalf("Contains before Load")
	}
	if _, ok := Watch(c, k, "ui.hud"); ok {
		t.Fatalf("Watch before Load reported an entry")
	}

	if _, err := Load(c, k, "", "ui.hud"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !Contains(c, k, "ui.hud") {
		t.Fatalf("Contains after Load = false")
	}
	// reload disabled: token pinned to zero
	if tok, ok := Watch(c, k, "ui.hud"); !ok || tok != 0 {
		t.Fatalf("Watch = (%d, %v), want (0, true)", tok, ok)
	}
}

// ==============================
// Kind isolation and reentrancy
// ==============================

func TestKindsDoNotCollideOnID(t *testing.T) {
	src := newMemSource()
	src.put("player", "txt", []byte("text body"))
	src.put("player", "bin", []byte{1, 2, 3})
	c := newTestCache(t, src, nil)

	text := Kind[string, string, string]{
		Name:   "text",
		Loader: loader.Strings("txt"),
		Bind:   func(_, raw string) (string, error) { return raw, nil },
	}
	blob := Kind[string, []byte, int]{
		Name:   "blob",
		Loader: loader.Bytes("bin"),
		Bind:   func(_ string, raw []byte) (int, error) { return len(raw), nil },
	}

	s, err := Load(c, text, "", "player")
	if err != nil || s != "text body" {
		t.Fatalf("text: v=%q err=%v", s, err)
	}
	n, err := Load(c, blob, "", "player")
	if err != nil || n != 3 {
		t.Fatalf("blob: v=%d err=%v", n, err)
	}
}

// A compound loader resolving sub-assets through the cache must not
// deadlock: decode runs outside entry locks.
func TestCompoundLoaderReenters(t *testing.T) {
	src := newMemSource()
	src.put("ui.atlas", "txt", []byte("ui.icon"))
	src.put("ui.icon", "txt", []byte("icon bytes"))

	var c *Cache
	var b textBinder
	leaf := b.kind()

	compound := Kind[string, string, string]{
		Name: "atlas",
		Loader: loader.Loader[string]{
			Extensions: []string{"txt"},
			Decode: func(data []byte, _ string) (string, error) {
				return Load(c, leaf, "", string(data))
			},
		},
		Bind: func(_, raw string) (string, error) { return "atlas:" + raw, nil },
	}

	c = newTestCache(t, src, nil)
	v, err := Load(c, compound, "", "ui.atlas")
	if err != nil || v != "atlas:icon bytes" {
		t.Fatalf("compound: v=%q err=%v", v, err)
	}
	if !Contains(c, leaf, "ui.icon") {
		t.Fatalf("nested load did not populate the leaf entry")
	}
}

// ==============================
// Options
// ==============================

func TestExtensionTableOverride(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	c := newTestCache(t, src, func(o *Options) {
		o.Extensions = ExtensionTable{"text": {"md"}}
	})

	var b textBinder
	if _, err := Load(c, b.kind(), "", "ui.hud"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("override should hide .txt: err = %v", err)
	}

	src.put("ui.hud", "md", []byte("markdown"))
	v, err := Load(c, b.kind(), "", "ui.hud")
	if err != nil || v != "markdown" {
		t.Fatalf("override ext: v=%q err=%v", v, err)
	}
}

func TestNewRequiresSource(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("New without a source succeeded")
	}
}

func TestCachedSourceSelfHealReachesHooks(t *testing.T) {
	inner := newMemSource()
	inner.put("ui.hud", "txt", []byte("v1"))
	p := newMemProvider()
	p.m["src:ui/hud.txt"] = []byte("garbage") // not a valid frame

	cached, err := source.NewCached(source.CachedConfig{Inner: inner, Provider: p})
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	hooks := &recHooks{}
	c := newTestCache(t, cached, func(o *Options) { o.Hooks = hooks })

	var b textBinder
	if v, err := Load(c, b.kind(), "", "ui.hud"); err != nil || v != "v1" {
		t.Fatalf("Load: v=%q err=%v", v, err)
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.selfHeals) != 1 || hooks.selfHeals[0] != "src:ui/hud.txt/corrupt" {
		t.Fatalf("selfHeals = %v", hooks.selfHeals)
	}
}

func TestCachedSourceExplicitSelfHealWins(t *testing.T) {
	inner := newMemSource()
	inner.put("ui.hud", "txt", []byte("v1"))
	p := newMemProvider()
	p.m["src:ui/hud.txt"] = []byte("garbage")

	var got []string
	cached, err := source.NewCached(source.CachedConfig{
		Inner:      inner,
		Provider:   p,
		OnSelfHeal: func(key, reason string) { got = append(got, key+"/"+reason) },
	})
	if err != nil {
		t.Fatalf("NewCached: %v", err)
	}
	hooks := &recHooks{}
	c := newTestCache(t, cached, func(o *Options) { o.Hooks = hooks })

	var b textBinder
	if _, err := Load(c, b.kind(), "", "ui.hud"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("explicit callback calls = %v", got)
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.selfHeals) != 0 {
		t.Fatalf("hooks overrode the explicit callback: %v", hooks.selfHeals)
	}
}

func TestInvalidateHooks(t *testing.T) {
	src := newMemSource()
	src.put("ui.hud", "txt", []byte("v1"))
	hooks := &recHooks{}
	c := newTestCache(t, src, func(o *Options) {
		o.HotReload = true
		o.Hooks = hooks
	})

	g := c.Invalidate("ui.hud")
	if g == 0 {
		t.Fatalf("Invalidate returned 0")
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.marks) != 1 || hooks.marks[0] != fmt.Sprintf("ui.hud@%d", g) {
		t.Fatalf("marks = %v", hooks.marks)
	}
}
