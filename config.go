package bindcache

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/unkn0wn-root/bindcache/loader"
)

// ExtensionTable maps kind names to the file extensions the source is
// probed with, overriding the extensions declared on the kind's loader.
type ExtensionTable map[string][]string

// DefaultExtensions returns the conventional table for the stock asset
// families.
func DefaultExtensions() ExtensionTable {
	return ExtensionTable{
		"image":  loader.ImageExtensions,
		"shader": loader.ShaderExtensions,
		"font":   loader.FontExtensions,
		"audio":  loader.AudioExtensions,
	}
}

type extensionsFile struct {
	Kinds map[string]struct {
		Extensions []string `yaml:"extensions"`
	} `yaml:"kinds"`
}

// ParseExtensions reads an extension table from yaml of the form:
//
//	kinds:
//	  image:
//	    extensions: [png, jpg]
//	  shader:
//	    extensions: [wgsl]
//
// Kinds with an empty extension list are rejected: an override that
// removes every extension makes the kind unloadable.
func ParseExtensions(b []byte) (ExtensionTable, error) {
	var f extensionsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("bindcache: parse extensions: %w", err)
	}
	out := make(ExtensionTable, len(f.Kinds))
	for kind, spec := range f.Kinds {
		if len(spec.Extensions) == 0 {
			return nil, fmt.Errorf("bindcache: kind %q has no extensions", kind)
		}
		out[kind] = spec.Extensions
	}
	return out, nil
}

// LoadExtensionsFile is ParseExtensions over a file on disk.
func LoadExtensionsFile(path string) (ExtensionTable, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseExtensions(b)
}
