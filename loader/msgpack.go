package loader

import "github.com/vmihailenco/msgpack/v5"

// Msgpack decodes a msgpack descriptor into R.
// Use `msgpack:"fieldName"` tags for explicit field control.
func Msgpack[R any](exts ...string) Loader[R] {
	return Loader[R]{
		Extensions: exts,
		Decode: func(data []byte, ext string) (R, error) {
			var v R
			if err := msgpack.Unmarshal(data, &v); err != nil {
				var zero R
				return zero, &DecodeError{Ext: ext, Err: err}
			}
			return v, nil
		},
	}
}
