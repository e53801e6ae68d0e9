package source

import (
	"io"
	"path"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/unkn0wn-root/bindcache/internal/util"
)

// Zip serves assets from a zip archive. The archive is indexed once at
// construction; reads decompress on demand. Archives are not watched for
// hot reload: repacking one requires restarting or rebuilding the cache.
type Zip struct {
	files  map[string]*zip.File // slash path -> file
	dirs   map[string][]Entry   // dir path ("." for root) -> direct children
	closer io.Closer
}

var _ Source = (*Zip)(nil)

// NewZip opens an archive on disk. Close the source (or the owning cache)
// to release the file handle.
func NewZip(path string) (*Zip, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	z := index(&rc.Reader)
	z.closer = rc
	return z, nil
}

// NewZipReader indexes an already-open archive (e.g. embedded in the
// binary). The caller keeps ownership of r.
func NewZipReader(r io.ReaderAt, size int64) (*Zip, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, err
	}
	return index(zr), nil
}

func index(r *zip.Reader) *Zip {
	z := &Zip{
		files: make(map[string]*zip.File, len(r.File)),
		dirs:  make(map[string][]Entry),
	}
	seen := make(map[string]bool)
	for _, f := range r.File {
		name := path.Clean(strings.TrimSuffix(f.Name, "/"))
		if name == "." || strings.HasPrefix(name, "..") {
			continue
		}
		if f.FileInfo().IsDir() {
			z.addDir(name, seen)
			continue
		}
		z.files[name] = f
		stem, ext, ok := util.SplitName(path.Base(name))
		if !ok {
			continue
		}
		dir := parent(name)
		z.addDir(dir, seen)
		id := util.JoinID(pathID(dir), stem)
		z.dirs[dir] = append(z.dirs[dir], FileEntry(id, ext))
	}
	return z
}

// addDir registers the directory and its ancestor chain exactly once.
func (z *Zip) addDir(dir string, seen map[string]bool) {
	for !seen[dir] {
		seen[dir] = true
		if _, ok := z.dirs[dir]; !ok {
			z.dirs[dir] = nil
		}
		if dir == "." {
			return
		}
		p := parent(dir)
		z.dirs[p] = append(z.dirs[p], DirEntry(pathID(dir)))
		dir = p
	}
}

func parent(p string) string {
	d := path.Dir(p)
	if d == "" {
		return "."
	}
	return d
}

func pathID(p string) string {
	if p == "." {
		return ""
	}
	return strings.ReplaceAll(p, "/", ".")
}

func (z *Zip) Read(id, ext string) ([]byte, error) {
	f, ok := z.files[util.IDToPath(id, ext)]
	if !ok {
		return nil, ErrNotFound
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (z *Zip) ReadDir(id string, fn func(Entry)) error {
	children, ok := z.dirs[util.IDToDirPath(id)]
	if !ok {
		return ErrNotFound
	}
	for _, e := range children {
		fn(e)
	}
	return nil
}

func (z *Zip) Exists(e Entry) bool {
	if e.Dir {
		_, ok := z.dirs[e.Path()]
		return ok
	}
	_, ok := z.files[e.Path()]
	return ok
}

func (z *Zip) WatchRoots() []string { return nil }

func (z *Zip) Close() error {
	if z.closer != nil {
		return z.closer.Close()
	}
	return nil
}
