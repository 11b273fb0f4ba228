package grpc

import (
	"github.com/fxamacker/cbor/v2"
	"google.golang.org/grpc/encoding"
)

// cborCodec is a google.golang.org/grpc/encoding.Codec that replaces the
// default proto codec, since this package has no generated stubs to
// drive proto's reflection-based marshaling.
type cborCodec struct{}

func (cborCodec) Marshal(v interface{}) ([]byte, error) {
	return cbor.Marshal(v)
}

func (cborCodec) Unmarshal(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}

func (cborCodec) Name() string {
	return codecName
}

// CodecName is the content-subtype a caller dials with via
// grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)) to
// negotiate this package's CBOR codec instead of the default proto one.
const CodecName = "cbor"

const codecName = CodecName

func init() {
	encoding.RegisterCodec(cborCodec{})
}
