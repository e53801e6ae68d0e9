package bindcache

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/zeebo/blake3"

	"github.com/unkn0wn-root/bindcache/internal/util"
)

// settleDelay coalesces the event burst a single save produces (truncate,
// write, metadata). The file is hashed once it has been quiet this long.
const settleDelay = 50 * time.Millisecond

// watcher turns filesystem events under the source's watch roots into
// generation bumps. Events only mark entries stale; re-decoding and
// re-binding happen lazily on the next access, never here.
//
// Write events debounce per path: a burst collapses into one hash of the
// settled content, compared against the previous settled digest, so saves
// that leave the bytes identical do not bump. The digest map is filled
// lazily; the first settled event for a path always bumps, at worst
// costing one spurious re-bind. Removes and renames bump immediately.
type watcher struct {
	c     *Cache
	fw    *fsnotify.Watcher
	roots []string

	mu      sync.Mutex
	digests map[string][32]byte
	pending map[string]*time.Timer
	closed  bool

	wg sync.WaitGroup
}

func newWatcher(c *Cache, roots []string) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	w := &watcher{
		c:       c,
		fw:      fw,
		roots:   roots,
		digests: make(map[string][32]byte),
		pending: make(map[string]*time.Timer),
	}
	for _, root := range roots {
		if err := w.addTree(root); err != nil {
			_ = fw.Close()
			return nil, err
		}
	}
	w.wg.Add(1)
	go w.run()
	return w, nil
}

// addTree registers the directory and all subdirectories; fsnotify
// watches are not recursive.
func (w *watcher) addTree(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil // unreadable subtrees are skipped, not fatal
		}
		return w.fw.Add(path)
	})
}

func (w *watcher) close() error {
	w.mu.Lock()
	w.closed = true
	for path, t := range w.pending {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()

	err := w.fw.Close()
	w.wg.Wait()
	return err
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case ev, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.c.log.Warn("watch error", Fields{"err": err})
			w.c.hooks.WatchError(err)
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event) {
	if ev.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			// new directory: watch it and anything racing in beneath it
			if err := w.addTree(ev.Name); err != nil {
				w.c.hooks.WatchError(err)
			}
			return
		}
	}

	id, ok := w.idFor(ev.Name)
	if !ok {
		return
	}

	switch {
	case ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename):
		w.cancel(ev.Name)
		w.forget(ev.Name)
		w.c.Invalidate(id)
	case ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create):
		w.schedule(ev.Name, id)
	}
}

// schedule (re)arms the settle timer for a path. Each event in a burst
// pushes the hash back until the file has been quiet for settleDelay, so
// a truncate-then-write save is hashed once, after the final write.
func (w *watcher) schedule(path, id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if t, ok := w.pending[path]; ok && t.Stop() {
		w.wg.Done()
	}
	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(settleDelay, func() { w.settle(path, id) })
}

func (w *watcher) settle(path, id string) {
	defer w.wg.Done()
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	delete(w.pending, path)
	w.mu.Unlock()

	if w.changed(path) {
		w.c.Invalidate(id)
	}
}

// cancel drops a pending settle; removes supersede it.
func (w *watcher) cancel(path string) {
	w.mu.Lock()
	if t, ok := w.pending[path]; ok {
		if t.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
	w.mu.Unlock()
}

// idFor maps an absolute event path back to an asset id. Paths outside
// every root and names that cannot carry an id (dotfiles) are ignored.
func (w *watcher) idFor(path string) (string, bool) {
	for _, root := range w.roots {
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		id, _, ok := util.PathToID(filepath.ToSlash(rel))
		return id, ok
	}
	return "", false
}

// changed hashes the file's settled content and reports whether it
// differs from the last settled digest.
func (w *watcher) changed(path string) bool {
	b, err := os.ReadFile(path)
	if err != nil {
		// gone or unreadable; let the load path observe the final state
		return true
	}
	sum := blake3.Sum256(b)

	w.mu.Lock()
	defer w.mu.Unlock()
	if prev, ok := w.digests[path]; ok && prev == sum {
		return false
	}
	w.digests[path] = sum
	return true
}

func (w *watcher) forget(path string) {
	w.mu.Lock()
	delete(w.digests, path)
	w.mu.Unlock()
}
