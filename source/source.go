// Package source provides read-only byte roots for asset ids and the
// layered composition of those roots.
//
// Asset ids are dot-separated ("ui.hud.health"); a root maps them to
// slash-separated paths plus an extension. Reads resolve against an ordered
// list of roots, first match wins; directory listings are the union of all
// roots, supporting partial overlays (a user data dir adding entries next
// to the shipped resource dir).
package source

import (
	"errors"

	"github.com/unkn0wn-root/bindcache/internal/util"
)

var (
	// ErrNotFound reports that no bytes exist for an (id, ext) pair in a root.
	ErrNotFound = errors.New("source: not found")

	// ErrNoValidSource reports that every configured root was absent.
	ErrNoValidSource = errors.New("source: no valid source")

	// ErrNoListing reports that a root cannot enumerate directories
	// (byte-store roots have no directory structure).
	ErrNoListing = errors.New("source: directory listing not supported")
)

// Entry identifies a file or directory inside a source, in id space.
type Entry struct {
	ID  string
	Ext string // empty for directories
	Dir bool
}

func FileEntry(id, ext string) Entry { return Entry{ID: id, Ext: ext} }
func DirEntry(id string) Entry       { return Entry{ID: id, Dir: true} }

// Path returns the slash-separated relative path of the entry.
func (e Entry) Path() string {
	if e.Dir {
		return util.IDToDirPath(e.ID)
	}
	return util.IDToPath(e.ID, e.Ext)
}

// Source is a read-only byte provider for asset ids.
// Implementations must be safe for concurrent use.
type Source interface {
	// Read returns the bytes for an id with the given extension.
	// ErrNotFound when the entry does not exist in this source.
	Read(id, ext string) ([]byte, error)

	// ReadDir visits every entry directly under the directory id.
	// The empty id is the source root.
	ReadDir(id string, fn func(Entry)) error

	// Exists reports whether the entry is present, without reading it.
	Exists(e Entry) bool

	// WatchRoots returns the absolute directory paths a hot-reload watcher
	// should observe for this source. Empty for unwatchable sources
	// (archives, remote stores).
	WatchRoots() []string
}
