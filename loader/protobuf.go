package loader

import "google.golang.org/protobuf/proto"

// Protobuf decodes a protobuf descriptor into a concrete message type.
// ctor constructs an empty message, e.g. func() *assetpb.Entity { return &assetpb.Entity{} }.
func Protobuf[T proto.Message](ctor func() T, exts ...string) Loader[T] {
	return Loader[T]{
		Extensions: exts,
		Decode: func(data []byte, ext string) (T, error) {
			m := ctor()
			if err := proto.Unmarshal(data, m); err != nil {
				var zero T
				return zero, &DecodeError{Ext: ext, Err: err}
			}
			return m, nil
		},
	}
}
