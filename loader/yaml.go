package loader

import "gopkg.in/yaml.v3"

// YAML decodes a YAML descriptor into R.
func YAML[R any](exts ...string) Loader[R] {
	return Loader[R]{
		Extensions: exts,
		Decode: func(data []byte, ext string) (R, error) {
			var v R
			if err := yaml.Unmarshal(data, &v); err != nil {
				var zero R
				return zero, &DecodeError{Ext: ext, Err: err}
			}
			return v, nil
		},
	}
}
