package wire

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// CodecName is the grpc content-subtype the codec registers under.
const CodecName = "tradesys-wire"

// Codec adapts the hand-written wire messages to grpc's encoding.Codec so
// calls can carry them without generated stubs. Select it per call with
// grpc.ForceCodec(wire.Codec{}).
type Codec struct{}

var _ encoding.Codec = Codec{}

// Marshal encodes a wire Message.
func (Codec) Marshal(v any) ([]byte, error) {
	m, ok := v.(Message)
	if !ok {
		return nil, fmt.Errorf("wire: cannot marshal %T", v)
	}
	return m.AppendWire(nil), nil
}

// Unmarshal decodes into a wire Message.
func (Codec) Unmarshal(data []byte, v any) error {
	m, ok := v.(Message)
	if !ok {
		return fmt.Errorf("wire: cannot unmarshal into %T", v)
	}
	return m.ParseWire(data)
}

// Name identifies the codec on the wire.
func (Codec) Name() string { return CodecName }
