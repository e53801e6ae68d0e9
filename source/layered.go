package source

import (
	"errors"
	"io"
)

// Root is one backing provider inside a Layered source. Name identifies it
// in logs and errors.
type Root struct {
	Name   string
	Source Source
}

// Layered resolves reads against an ordered list of roots, first match
// wins. Directory listings aggregate every root that succeeds, so a
// lower-priority root can overlay extra entries under a directory even
// when individual files are masked. Roots are fixed at construction.
type Layered struct {
	roots []Root
}

var _ Source = (*Layered)(nil)

// NewLayered composes present roots in priority order. Roots with a nil
// Source are skipped (absent is a valid configuration state); if every
// root is absent the source is unusable and ErrNoValidSource is returned.
func NewLayered(roots ...Root) (*Layered, error) {
	l := &Layered{}
	for _, r := range roots {
		if r.Source != nil {
			l.roots = append(l.roots, r)
		}
	}
	if len(l.roots) == 0 {
		return nil, ErrNoValidSource
	}
	return l, nil
}

// Layout names the conventional root locations in read-priority order:
// the shipped resource directory, an optional packed archive, then the
// per-user local-data and config directories.
type Layout struct {
	ResourceDir  string
	ArchivePath  string
	LocalDataDir string
	ConfigDir    string
}

// NewLayout opens every location that exists and layers them. Missing
// directories and a missing archive are skipped silently; only a fully
// absent layout is an error.
func NewLayout(layout Layout) (*Layered, error) {
	var roots []Root
	if layout.ResourceDir != "" {
		if d, err := NewDir(layout.ResourceDir); err == nil {
			roots = append(roots, Root{Name: "resources", Source: d})
		}
	}
	if layout.ArchivePath != "" {
		if z, err := NewZip(layout.ArchivePath); err == nil {
			roots = append(roots, Root{Name: "archive", Source: z})
		}
	}
	if layout.LocalDataDir != "" {
		if d, err := NewDir(layout.LocalDataDir); err == nil {
			roots = append(roots, Root{Name: "local-data", Source: d})
		}
	}
	if layout.ConfigDir != "" {
		if d, err := NewDir(layout.ConfigDir); err == nil {
			roots = append(roots, Root{Name: "config", Source: d})
		}
	}
	return NewLayered(roots...)
}

// Read tries each root in order and returns the first hit. When every
// root fails, the last observed error is returned.
func (l *Layered) Read(id, ext string) ([]byte, error) {
	var lastErr error
	for _, r := range l.roots {
		b, err := r.Source.Read(id, ext)
		if err == nil {
			return b, nil
		}
		lastErr = err
	}
	if lastErr == nil {
		return nil, ErrNoValidSource
	}
	return nil, lastErr
}

// ReadDir aggregates entries across every root that can list the
// directory, deduplicating entries present in several roots. It fails only
// when no root succeeds.
func (l *Layered) ReadDir(id string, fn func(Entry)) error {
	seen := make(map[Entry]struct{})
	var lastErr error
	succeeded := false
	for _, r := range l.roots {
		err := r.Source.ReadDir(id, func(e Entry) {
			if _, dup := seen[e]; dup {
				return
			}
			seen[e] = struct{}{}
			fn(e)
		})
		if err != nil {
			lastErr = err
			continue
		}
		succeeded = true
	}
	if !succeeded {
		if lastErr == nil {
			return ErrNoValidSource
		}
		return lastErr
	}
	return nil
}

func (l *Layered) Exists(e Entry) bool {
	for _, r := range l.roots {
		if r.Source.Exists(e) {
			return true
		}
	}
	return false
}

// WatchRoots collects the watchable paths of every root. Archive and
// remote roots contribute nothing. Edits under any watched directory bump
// the id's generation even when a higher-priority root masks the content;
// an approximation, not a precise dependency trace.
func (l *Layered) WatchRoots() []string {
	var paths []string
	for _, r := range l.roots {
		paths = append(paths, r.Source.WatchRoots()...)
	}
	return paths
}

// SetOnSelfHeal forwards the callback to every root that supports it
// (read-through cached roots).
func (l *Layered) SetOnSelfHeal(fn func(key, reason string)) {
	for _, r := range l.roots {
		if sh, ok := r.Source.(interface{ SetOnSelfHeal(func(string, string)) }); ok {
			sh.SetOnSelfHeal(fn)
		}
	}
}

// Close releases every root that holds resources.
func (l *Layered) Close() error {
	var errs []error
	for _, r := range l.roots {
		if c, ok := r.Source.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
