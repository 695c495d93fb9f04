package message

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

var ErrMalformed = errors.New("message: malformed wire data")

// Encoder appends protobuf wire fields to a buffer.
type Encoder struct {
	buf []byte
}

func NewEncoder(sizeHint int) *Encoder {
	return &Encoder{buf: make([]byte, 0, sizeHint)}
}

func (e *Encoder) Uint32(num protowire.Number, v uint32) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, uint64(v))
}

func (e *Encoder) Int32(num protowire.Number, v int32) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.VarintType)
	e.buf = protowire.AppendVarint(e.buf, protowire.EncodeZigZag(int64(v)))
}

func (e *Encoder) Float32(num protowire.Number, v float32) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.Fixed32Type)
	e.buf = protowire.AppendFixed32(e.buf, math.Float32bits(v))
}

// Float32s writes a packed repeated fixed32 field. Empty slices are omitted.
func (e *Encoder) Float32s(num protowire.Number, vs []float32) {
	if len(vs) == 0 {
		return
	}
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendVarint(e.buf, uint64(4*len(vs)))
	for _, v := range vs {
		e.buf = protowire.AppendFixed32(e.buf, math.Float32bits(v))
	}
}

// Uint32s writes a packed repeated varint field. Empty slices are omitted.
func (e *Encoder) Uint32s(num protowire.Number, vs []uint32) {
	if len(vs) == 0 {
		return
	}
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	e.Bytes(num, packed)
}

func (e *Encoder) Bytes(num protowire.Number, b []byte) {
	e.buf = protowire.AppendTag(e.buf, num, protowire.BytesType)
	e.buf = protowire.AppendBytes(e.buf, b)
}

// Message writes a length-delimited sub message built by fn.
func (e *Encoder) Message(num protowire.Number, fn func(sub *Encoder)) {
	sub := &Encoder{}
	fn(sub)
	e.Bytes(num, sub.buf)
}

func (e *Encoder) Encode() []byte {
	return e.buf
}

// Field is one decoded wire field. Only the member matching Type is set.
type Field struct {
	Num     protowire.Number
	Type    protowire.Type
	Varint  uint64
	Fixed32 uint32
	Bytes   []byte
}

func (f Field) Uint32() uint32   { return uint32(f.Varint) }
func (f Field) Int32() int32     { return int32(protowire.DecodeZigZag(f.Varint)) }
func (f Field) Float32() float32 { return math.Float32frombits(f.Fixed32) }

// Walk calls fn for every top level field of b in wire order.
func Walk(b []byte, fn func(f Field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			f.Varint, n = protowire.ConsumeVarint(b)
		case protowire.Fixed32Type:
			f.Fixed32, n = protowire.ConsumeFixed32(b)
		case protowire.BytesType:
			f.Bytes, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
		}
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]
		if err := fn(f); err != nil {
			return err
		}
	}
	return nil
}

func Float32s(packed []byte) ([]float32, error) {
	if len(packed)%4 != 0 {
		return nil, ErrMalformed
	}
	out := make([]float32, 0, len(packed)/4)
	for len(packed) > 0 {
		v, n := protowire.ConsumeFixed32(packed)
		if n < 0 {
			return nil, ErrMalformed
		}
		out = append(out, math.Float32frombits(v))
		packed = packed[n:]
	}
	return out, nil
}

func Uint32s(packed []byte) ([]uint32, error) {
	var out []uint32
	for len(packed) > 0 {
		v, n := protowire.ConsumeVarint(packed)
		if n < 0 {
			return nil, ErrMalformed
		}
		out = append(out, uint32(v))
		packed = packed[n:]
	}
	return out, nil
}
