// Package loader converts source bytes into typed, context-free raw assets.
//
// A Loader pairs a pure decode function with the file extensions it accepts.
// Decoding never touches the runtime context; anything context-dependent
// happens later, in the asset kind's bind step.
package loader

import "fmt"

// Func decodes source bytes with a known extension into a raw value.
// Implementations must be pure: same bytes, same result. A decode func for
// a compound asset may capture a cache and issue nested loads for referenced
// sub-ids; the cache guarantees no entry lock is held while decoding.
type Func[R any] func(data []byte, ext string) (R, error)

// Loader declares the accepted extensions and the decode step of a raw
// asset kind. Extensions are matched in order against the layered source.
type Loader[R any] struct {
	Extensions []string
	Decode     Func[R]
}

// Default extension sets per asset family. Hosts override these through the
// cache's extension table; loaders only carry them as declared defaults.
var (
	ImageExtensions  = []string{"png", "bmp", "jpg", "jpeg", "webp"}
	ShaderExtensions = []string{"wgsl"}
	FontExtensions   = []string{"ttf", "otf"}
	AudioExtensions  = []string{"ogg", "flac", "wav"}
)

// DecodeError reports a failed decode. Unsupported marks extension
// rejection as opposed to malformed content.
type DecodeError struct {
	Ext         string
	Unsupported bool
	Err         error
}

func (e *DecodeError) Error() string {
	if e.Unsupported {
		return fmt.Sprintf("decode: unsupported extension %q", e.Ext)
	}
	return fmt.Sprintf("decode (%s): %v", e.Ext, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Limit wraps a loader to enforce a maximum payload size before decoding.
// If max <= 0, size limiting is disabled. Protects against oversized files
// reaching an expensive decoder.
func Limit[R any](inner Loader[R], max int) Loader[R] {
	if max <= 0 {
		return inner
	}
	return Loader[R]{
		Extensions: inner.Extensions,
		Decode: func(data []byte, ext string) (R, error) {
			if len(data) > max {
				var zero R
				return zero, &DecodeError{
					Ext: ext,
					Err: fmt.Errorf("payload too large: %d > %d", len(data), max),
				}
			}
			return inner.Decode(data, ext)
		},
	}
}

func supports(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}
