package loader

import "github.com/fxamacker/cbor/v2"

// CBOR decodes a CBOR descriptor into R using default decode options.
// Compact binary descriptors suit packed archive roots.
func CBOR[R any](exts ...string) Loader[R] {
	dm, err := (cbor.DecOptions{}).DecMode()
	if err != nil {
		panic(err) // empty options cannot fail
	}
	return Loader[R]{
		Extensions: exts,
		Decode: func(data []byte, ext string) (R, error) {
			var v R
			if err := dm.Unmarshal(data, &v); err != nil {
				var zero R
				return zero, &DecodeError{Ext: ext, Err: err}
			}
			return v, nil
		},
	}
}
