package loader

// Bytes is an identity loader keeping the source bytes as the raw value.
// This is the right shape for formats the host runtime decodes itself
// (audio sample data, font files): the raw phase just owns the bytes and
// the bind phase hands them to the context.
func Bytes(exts ...string) Loader[[]byte] {
	return Loader[[]byte]{
		Extensions: exts,
		Decode: func(data []byte, _ string) ([]byte, error) {
			out := make([]byte, len(data))
			copy(out, data) // sources may reuse buffers
			return out, nil
		},
	}
}

// Strings decodes source bytes as UTF-8 text (shader source, templates).
// No validation is performed.
func Strings(exts ...string) Loader[string] {
	return Loader[string]{
		Extensions: exts,
		Decode: func(data []byte, _ string) (string, error) {
			return string(data), nil
		},
	}
}
