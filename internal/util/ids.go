package util

import "strings"

// IDToPath maps a dot-separated asset id plus extension to a slash-separated
// relative path: "ui.hud.health" + "png" => "ui/hud/health.png".
// An empty extension yields a path without a trailing dot.
func IDToPath(id, ext string) string {
	var b strings.Builder
	b.Grow(len(id) + len(ext) + 1)
	for i, comp := range strings.Split(id, ".") {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(comp)
	}
	if ext != "" {
		b.WriteByte('.')
		b.WriteString(ext)
	}
	return b.String()
}

// IDToDirPath maps a dot-separated id to its directory path.
// The empty id maps to ".", the root of the source.
func IDToDirPath(id string) string {
	if id == "" {
		return "."
	}
	return strings.ReplaceAll(id, ".", "/")
}

// PathToID reverses IDToPath for a slash-separated relative path,
// returning the id and the extension. Paths whose file name starts with a
// dot have no valid id; ok is false for those.
func PathToID(rel string) (id, ext string, ok bool) {
	rel = strings.TrimSuffix(rel, "/")
	base := rel
	if i := strings.LastIndexByte(rel, '/'); i >= 0 {
		base = rel[i+1:]
	}
	name, ext, ok := SplitName(base)
	if !ok {
		return "", "", false
	}
	stem := rel[:len(rel)-len(base)] + name
	return strings.ReplaceAll(stem, "/", "."), ext, true
}

// SplitName splits a file name into (stem, extension). Names without a dot
// have an empty extension. Names starting with a dot are rejected.
func SplitName(name string) (stem, ext string, ok bool) {
	stem, ext, found := strings.Cut(name, ".")
	if stem == "" && name != "" {
		return "", "", false
	}
	if !found {
		return name, "", name != ""
	}
	return stem, ext, true
}

// JoinID appends a child segment to a parent id.
func JoinID(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
