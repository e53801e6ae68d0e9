package loader

import "encoding/json"

// JSON decodes a JSON descriptor into R. Descriptors are the usual vehicle
// for compound assets: an entity file naming its texture and sound ids.
func JSON[R any](exts ...string) Loader[R] {
	return Loader[R]{
		Extensions: exts,
		Decode: func(data []byte, ext string) (R, error) {
			var v R
			if err := json.Unmarshal(data, &v); err != nil {
				var zero R
				return zero, &DecodeError{Ext: ext, Err: err}
			}
			return v, nil
		},
	}
}
