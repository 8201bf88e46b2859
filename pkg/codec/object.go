package codec

import "github.com/fxamacker/cbor/v2"

// ObjectCodec is the pluggable serialization boundary for "other typed"
// values (spec.md section 4.4 and section 9): anything that is not
// bytes-like, bool, int, or long goes through it. The implementation MAY
// pick any binary format, provided Encode/Decode are a symmetric pair used
// consistently by producers and consumers (spec.md section 9).
type ObjectCodec interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, out any) error
}

// cborCodec is the default ObjectCodec, backed by the default CBOR
// encoding mode of github.com/fxamacker/cbor/v2. It is stateless and safe for
// concurrent use.
type cborCodec struct{}

// DefaultObjectCodec is the ObjectCodec used when a Codec is constructed
// without an explicit override.
var DefaultObjectCodec ObjectCodec = cborCodec{}

func (cborCodec) Encode(v any) ([]byte, error) {
	return cbor.Marshal(v)
}

func (cborCodec) Decode(data []byte, out any) error {
	return cbor.Unmarshal(data, out)
}
