package wire

import (
	"bytes"
	"cmp"
	"fmt"
	"math"
)

// kind describes how values of one scalar kind travel on the wire. Field
// bindings are assembled from a kind plus the field's cardinality.
type kind[T any] struct {
	name     string
	wireType WireType
	size     func(T) int
	encode   func(*Encoder, T)
	decode   func(*Decoder) (T, error)
	equal    func(a, b T) bool

	// Optional hooks. Nil means the obvious behavior for value types.
	less      func(a, b T) bool                          // map key ordering
	clone     func(T) T                                  // deep copy
	fresh     func() T                                   // new zero value
	mergeInto func(d *Decoder, dst T, has bool) (T, error) // fold one occurrence into dst
	validate  func(T) error                              // extra checks on Set
}

func (k kind[T]) zero() T {
	if k.fresh != nil {
		return k.fresh()
	}
	var z T
	return z
}

func (k kind[T]) copyOf(v T) T {
	if k.clone != nil {
		return k.clone(v)
	}
	return v
}

// mergeOne decodes one occurrence and folds it into dst.
func (k kind[T]) mergeOne(d *Decoder, dst T, has bool) (T, error) {
	if k.mergeInto != nil {
		return k.mergeInto(d, dst, has)
	}
	return k.decode(d)
}

func (k kind[T]) packable() bool {
	return k.wireType != WireBytes
}

// assert converts a caller-supplied value to T.
func (k kind[T]) assert(v any) (T, error) {
	t, ok := v.(T)
	if !ok {
		var z T
		return z, fmt.Errorf("%s field expects %T, got %T", k.name, z, v)
	}
	if k.validate != nil {
		if err := k.validate(t); err != nil {
			return t, err
		}
	}
	return t, nil
}

func same[T comparable](a, b T) bool { return a == b }

func sameFloat32(a, b float32) bool { return math.Float32bits(a) == math.Float32bits(b) }

func sameFloat64(a, b float64) bool { return math.Float64bits(a) == math.Float64bits(b) }

func lessBool(a, b bool) bool { return !a && b }

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append([]byte{}, b...)
}

var (
	int32Kind = kind[int32]{
		name:     "int32",
		wireType: WireVarint,
		size:     func(v int32) int { return VarintSize(uint64(int64(v))) },
		encode:   func(e *Encoder, v int32) { NewVarintEncoder(e).EncodeInt32(v) },
		decode:   func(d *Decoder) (int32, error) { return NewVarintDecoder(d).DecodeInt32() },
		equal:    same[int32],
		less:     cmp.Less[int32],
	}
	int64Kind = kind[int64]{
		name:     "int64",
		wireType: WireVarint,
		size:     func(v int64) int { return VarintSize(uint64(v)) },
		encode:   func(e *Encoder, v int64) { NewVarintEncoder(e).EncodeInt64(v) },
		decode:   func(d *Decoder) (int64, error) { return NewVarintDecoder(d).DecodeInt64() },
		equal:    same[int64],
		less:     cmp.Less[int64],
	}
	uint32Kind = kind[uint32]{
		name:     "uint32",
		wireType: WireVarint,
		size:     func(v uint32) int { return VarintSize(uint64(v)) },
		encode:   func(e *Encoder, v uint32) { NewVarintEncoder(e).EncodeUint32(v) },
		decode:   func(d *Decoder) (uint32, error) { return NewVarintDecoder(d).DecodeUint32() },
		equal:    same[uint32],
		less:     cmp.Less[uint32],
	}
	uint64Kind = kind[uint64]{
		name:     "uint64",
		wireType: WireVarint,
		size:     VarintSize,
		encode:   func(e *Encoder, v uint64) { NewVarintEncoder(e).EncodeUint64(v) },
		decode:   func(d *Decoder) (uint64, error) { return NewVarintDecoder(d).DecodeVarint() },
		equal:    same[uint64],
		less:     cmp.Less[uint64],
	}
	sint32Kind = kind[int32]{
		name:     "sint32",
		wireType: WireVarint,
		size:     func(v int32) int { return VarintSize(EncodeZigZag32(v)) },
		encode:   func(e *Encoder, v int32) { NewVarintEncoder(e).EncodeSint32(v) },
		decode:   func(d *Decoder) (int32, error) { return NewVarintDecoder(d).DecodeSint32() },
		equal:    same[int32],
		less:     cmp.Less[int32],
	}
	sint64Kind = kind[int64]{
		name:     "sint64",
		wireType: WireVarint,
		size:     func(v int64) int { return VarintSize(EncodeZigZag64(v)) },
		encode:   func(e *Encoder, v int64) { NewVarintEncoder(e).EncodeSint64(v) },
		decode:   func(d *Decoder) (int64, error) { return NewVarintDecoder(d).DecodeSint64() },
		equal:    same[int64],
		less:     cmp.Less[int64],
	}
	boolKind = kind[bool]{
		name:     "bool",
		wireType: WireVarint,
		size:     func(bool) int { return 1 },
		encode:   func(e *Encoder, v bool) { NewVarintEncoder(e).EncodeBool(v) },
		decode:   func(d *Decoder) (bool, error) { return NewVarintDecoder(d).DecodeBool() },
		equal:    same[bool],
		less:     lessBool,
	}
	enumKind = kind[int32]{
		name:     "enum",
		wireType: WireVarint,
		size:     int32Kind.size,
		encode:   int32Kind.encode,
		decode:   int32Kind.decode,
		equal:    same[int32],
	}
	fixed32Kind = kind[uint32]{
		name:     "fixed32",
		wireType: WireFixed32,
		size:     func(uint32) int { return Fixed32Size() },
		encode:   func(e *Encoder, v uint32) { NewFixedEncoder(e).EncodeFixed32(v) },
		decode:   func(d *Decoder) (uint32, error) { return NewFixedDecoder(d).DecodeFixed32() },
		equal:    same[uint32],
		less:     cmp.Less[uint32],
	}
	sfixed32Kind = kind[int32]{
		name:     "sfixed32",
		wireType: WireFixed32,
		size:     func(int32) int { return Fixed32Size() },
		encode:   func(e *Encoder, v int32) { NewFixedEncoder(e).EncodeSfixed32(v) },
		decode:   func(d *Decoder) (int32, error) { return NewFixedDecoder(d).DecodeSfixed32() },
		equal:    same[int32],
		less:     cmp.Less[int32],
	}
	floatKind = kind[float32]{
		name:     "float",
		wireType: WireFixed32,
		size:     func(float32) int { return Fixed32Size() },
		encode:   func(e *Encoder, v float32) { NewFixedEncoder(e).EncodeFloat32(v) },
		decode:   func(d *Decoder) (float32, error) { return NewFixedDecoder(d).DecodeFloat32() },
		equal:    sameFloat32,
	}
	fixed64Kind = kind[uint64]{
		name:     "fixed64",
		wireType: WireFixed64,
		size:     func(uint64) int { return Fixed64Size() },
		encode:   func(e *Encoder, v uint64) { NewFixedEncoder(e).EncodeFixed64(v) },
		decode:   func(d *Decoder) (uint64, error) { return NewFixedDecoder(d).DecodeFixed64() },
		equal:    same[uint64],
		less:     cmp.Less[uint64],
	}
	sfixed64Kind = kind[int64]{
		name:     "sfixed64",
		wireType: WireFixed64,
		size:     func(int64) int { return Fixed64Size() },
		encode:   func(e *Encoder, v int64) { NewFixedEncoder(e).EncodeSfixed64(v) },
		decode:   func(d *Decoder) (int64, error) { return NewFixedDecoder(d).DecodeSfixed64() },
		equal:    same[int64],
		less:     cmp.Less[int64],
	}
	doubleKind = kind[float64]{
		name:     "double",
		wireType: WireFixed64,
		size:     func(float64) int { return Fixed64Size() },
		encode:   func(e *Encoder, v float64) { NewFixedEncoder(e).EncodeFloat64(v) },
		decode:   func(d *Decoder) (float64, error) { return NewFixedDecoder(d).DecodeFloat64() },
		equal:    sameFloat64,
	}
	stringKind = kind[string]{
		name:     "string",
		wireType: WireBytes,
		size:     StringSize,
		encode:   func(e *Encoder, v string) { NewBytesEncoder(e).EncodeString(v) },
		decode:   func(d *Decoder) (string, error) { return NewBytesDecoder(d).DecodeString() },
		equal:    same[string],
		less:     cmp.Less[string],
	}
	bytesKind = kind[[]byte]{
		name:     "bytes",
		wireType: WireBytes,
		size:     BytesSize,
		encode:   func(e *Encoder, v []byte) { NewBytesEncoder(e).EncodeBytes(v) },
		decode:   func(d *Decoder) ([]byte, error) { return NewBytesDecoder(d).DecodeBytes() },
		equal:    bytes.Equal,
		clone:    cloneBytes,
	}
)

// messageKind carries embedded messages of one descriptor. Occurrences of a
// singular embedded message merge into the value already held.
func messageKind(desc *Descriptor) kind[*Message] {
	return kind[*Message]{
		name:     "message " + desc.name,
		wireType: WireBytes,
		size: func(m *Message) int {
			n := m.EncodedLen()
			return VarintSize(uint64(n)) + n
		},
		encode: func(e *Encoder, m *Message) {
			NewMessageEncoder(e).EncodeMessage(m)
		},
		decode: func(d *Decoder) (*Message, error) {
			return NewMessageDecoder(d).DecodeMessage(desc)
		},
		mergeInto: func(d *Decoder, dst *Message, has bool) (*Message, error) {
			if !has || dst == nil {
				dst = desc.New()
			}
			if err := dst.mergeSpan(d); err != nil {
				return nil, err
			}
			return dst, nil
		},
		equal: func(a, b *Message) bool { return a.Equal(b) },
		clone: func(m *Message) *Message { return m.Clone() },
		fresh: desc.New,
		validate: func(m *Message) error {
			if m == nil || m.desc != desc {
				return fmt.Errorf("field expects a %s message", desc.name)
			}
			return nil
		},
	}
}

// anyKind is a kind with its type parameter erased, used where keys and
// values of different kinds meet in one container (map entries).
type anyKind struct {
	wireType WireType
	size     func(any) int
	encode   func(*Encoder, any)
	decode   func(*Decoder) (any, error)
	equal    func(a, b any) bool
	less     func(a, b any) bool
	clone    func(any) any
	zero     func() any
	assert   func(any) (any, error)
}

func erase[T any](k kind[T]) anyKind {
	ak := anyKind{
		wireType: k.wireType,
		size:     func(v any) int { return k.size(v.(T)) },
		encode:   func(e *Encoder, v any) { k.encode(e, v.(T)) },
		decode: func(d *Decoder) (any, error) {
			v, err := k.decode(d)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		equal: func(a, b any) bool { return k.equal(a.(T), b.(T)) },
		clone: func(v any) any { return k.copyOf(v.(T)) },
		zero:  func() any { return k.zero() },
		assert: func(v any) (any, error) {
			t, err := k.assert(v)
			if err != nil {
				return nil, err
			}
			return t, nil
		},
	}
	if k.less != nil {
		ak.less = func(a, b any) bool { return k.less(a.(T), b.(T)) }
	}
	return ak
}
