package source

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/unkn0wn-root/bindcache/internal/util"
)

// Dir serves assets from a plain directory on disk.
type Dir struct {
	root string
}

var _ Source = (*Dir)(nil)

// NewDir opens a directory root. The directory must exist; callers treating
// absence as a valid configuration (layered roots) skip the root on error.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("source: %s is not a directory", abs)
	}
	return &Dir{root: abs}, nil
}

func (d *Dir) path(e Entry) string {
	return filepath.Join(d.root, filepath.FromSlash(e.Path()))
}

func (d *Dir) Read(id, ext string) ([]byte, error) {
	b, err := os.ReadFile(d.path(FileEntry(id, ext)))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	return b, err
}

func (d *Dir) ReadDir(id string, fn func(Entry)) error {
	entries, err := os.ReadDir(d.path(DirEntry(id)))
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	for _, de := range entries {
		name := de.Name()
		if de.IsDir() {
			fn(DirEntry(util.JoinID(id, name)))
			continue
		}
		stem, ext, ok := util.SplitName(name)
		if !ok {
			continue // dotfiles have no id
		}
		fn(FileEntry(util.JoinID(id, stem), ext))
	}
	return nil
}

func (d *Dir) Exists(e Entry) bool {
	info, err := os.Stat(d.path(e))
	return err == nil && info.IsDir() == e.Dir
}

func (d *Dir) WatchRoots() []string { return []string{d.root} }
