// Package wire holds the protobuf wire-format codecs for the data-frame and
// securities services. Messages are encoded by hand with protowire so the
// repo carries no generated stubs; field numbers are part of the protocol
// and must not be reused.
package wire

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is anything that can encode itself onto the wire and parse itself
// back. Parsing skips unknown fields, so older binaries tolerate newer
// peers.
type Message interface {
	AppendWire(b []byte) []byte
	ParseWire(b []byte) error
}

// fieldError wraps a protowire parse failure with the offending field.
func fieldError(num protowire.Number, n int) error {
	return fmt.Errorf("wire: field %d: %w", num, protowire.ParseError(n))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, math.Float64bits(v))
}

func appendInt64(b []byte, num protowire.Number, v int64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, 1)
}

func appendMessage(b []byte, num protowire.Number, m Message) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, m.AppendWire(nil))
}

// walkFields drives a parse loop: it decodes each tag and hands the
// remaining buffer to the field callback, which returns how many bytes it
// consumed. A zero consumption falls through to skipping the field.
func walkFields(b []byte, field func(num protowire.Number, typ protowire.Type, b []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("wire: tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		used, err := field(num, typ, b)
		if err != nil {
			return err
		}
		if used == 0 {
			used = protowire.ConsumeFieldValue(num, typ, b)
			if used < 0 {
				return fieldError(num, used)
			}
		}
		b = b[used:]
	}
	return nil
}

func consumeString(num protowire.Number, b []byte, dst *string) (int, error) {
	v, n := protowire.ConsumeString(b)
	if n < 0 {
		return 0, fieldError(num, n)
	}
	*dst = v
	return n, nil
}

func consumeBytes(num protowire.Number, b []byte, dst *[]byte) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fieldError(num, n)
	}
	*dst = append([]byte(nil), v...)
	return n, nil
}

func consumeDouble(num protowire.Number, b []byte, dst *float64) (int, error) {
	v, n := protowire.ConsumeFixed64(b)
	if n < 0 {
		return 0, fieldError(num, n)
	}
	*dst = math.Float64frombits(v)
	return n, nil
}

func consumeInt64(num protowire.Number, b []byte, dst *int64) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fieldError(num, n)
	}
	*dst = int64(v)
	return n, nil
}

func consumeBool(num protowire.Number, b []byte, dst *bool) (int, error) {
	v, n := protowire.ConsumeVarint(b)
	if n < 0 {
		return 0, fieldError(num, n)
	}
	*dst = v != 0
	return n, nil
}

func consumeMessage(num protowire.Number, b []byte, m Message) (int, error) {
	v, n := protowire.ConsumeBytes(b)
	if n < 0 {
		return 0, fieldError(num, n)
	}
	if err := m.ParseWire(v); err != nil {
		return 0, err
	}
	return n, nil
}
