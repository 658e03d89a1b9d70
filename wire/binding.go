package wire

import (
	"fmt"

	"github.com/anirudhraja/pbcodec/schema"
)

// FieldBinding ties one declared field to the operations the message codec
// runs against its storage slot. Bindings are built once per descriptor and
// shared by every message of that type.
type FieldBinding struct {
	Field    *schema.Field
	Name     string
	Number   FieldNumber
	WireType WireType // wire type written on encode
	Label    schema.FieldLabel
	Packed   bool

	index   int         // slot in Message.values
	oneof   int         // index into Descriptor.oneofs, -1 outside any group
	message *Descriptor // element type of message fields and message-valued maps

	initial    func() any
	has        func(v any) bool
	encode     func(e *Encoder, v any)
	encodedLen func(v any) int
	accepts    func(wt WireType) bool
	merge      func(d *Decoder, wt WireType, old any) (any, error)
	equal      func(a, b any) bool
	clone      func(v any) any
	normalize  func(v any) (any, error)
}

// Index returns the storage slot of the field within its message.
func (b *FieldBinding) Index() int {
	return b.index
}

// MessageType returns the descriptor of the embedded message type, or nil
// for fields that do not hold messages.
func (b *FieldBinding) MessageType() *Descriptor {
	return b.message
}

// InOneof reports whether the field is a member of a oneof group.
func (b *FieldBinding) InOneof() bool {
	return b.oneof >= 0
}

func newBinding(f *schema.Field, wt WireType, oneof int) *FieldBinding {
	return &FieldBinding{
		Field:    f,
		Name:     f.Name,
		Number:   FieldNumber(f.Number),
		WireType: wt,
		Label:    f.Label,
		Packed:   f.Packed,
		oneof:    oneof,
	}
}

// bindKind picks the cardinality shape for f. Singular embedded messages carry
// presence like optional fields; oneof members always do.
func bindKind[T any](f *schema.Field, k kind[T], def T, isMessage bool, oneof int) *FieldBinding {
	switch {
	case f.Label == schema.LabelRepeated:
		return repeatedBinding(f, k)
	case oneof >= 0, f.Label == schema.LabelOptional:
		return optionalBinding(f, k, oneof)
	case f.Label == schema.LabelRequired:
		return requiredBinding(f, k, def, isMessage)
	case isMessage:
		return optionalBinding(f, k, -1)
	default:
		return singularBinding(f, k, def)
	}
}

// ===== SINGULAR =====

// singularBinding holds a value at all times and writes it only when it
// differs from the declared default.
func singularBinding[T any](f *schema.Field, k kind[T], def T) *FieldBinding {
	b := newBinding(f, k.wireType, -1)
	tagSize := TagSize(b.Number)

	b.initial = func() any { return k.copyOf(def) }
	b.has = func(v any) bool { return !k.equal(v.(T), def) }
	b.encode = func(e *Encoder, v any) {
		e.EncodeTag(b.Number, k.wireType)
		k.encode(e, v.(T))
	}
	b.encodedLen = func(v any) int { return tagSize + k.size(v.(T)) }
	b.accepts = func(wt WireType) bool { return wt == k.wireType }
	b.merge = func(d *Decoder, _ WireType, old any) (any, error) {
		return k.mergeOne(d, old.(T), true)
	}
	b.equal = func(a, c any) bool { return k.equal(a.(T), c.(T)) }
	b.clone = func(v any) any { return k.copyOf(v.(T)) }
	b.normalize = func(v any) (any, error) { return k.assert(v) }
	return b
}

// requiredBinding is always written. A required embedded message holds a nil
// *Message until it is set or decoded; nil encodes as an empty message.
func requiredBinding[T any](f *schema.Field, k kind[T], def T, isMessage bool) *FieldBinding {
	b := singularBinding(f, k, def)
	if isMessage {
		b.initial = func() any {
			var z T
			return z
		}
	}
	b.has = func(any) bool { return true }
	return b
}

// ===== OPTIONAL / ONEOF =====

// optionalBinding stores nil while the field is absent.
func optionalBinding[T any](f *schema.Field, k kind[T], oneof int) *FieldBinding {
	b := newBinding(f, k.wireType, oneof)
	tagSize := TagSize(b.Number)

	b.initial = func() any { return nil }
	b.has = func(v any) bool { return v != nil }
	b.encode = func(e *Encoder, v any) {
		e.EncodeTag(b.Number, k.wireType)
		k.encode(e, v.(T))
	}
	b.encodedLen = func(v any) int { return tagSize + k.size(v.(T)) }
	b.accepts = func(wt WireType) bool { return wt == k.wireType }
	b.merge = func(d *Decoder, _ WireType, old any) (any, error) {
		if old == nil {
			var z T
			return k.mergeOne(d, z, false)
		}
		return k.mergeOne(d, old.(T), true)
	}
	b.equal = func(a, c any) bool {
		if a == nil || c == nil {
			return a == nil && c == nil
		}
		return k.equal(a.(T), c.(T))
	}
	b.clone = func(v any) any {
		if v == nil {
			return nil
		}
		return k.copyOf(v.(T))
	}
	b.normalize = func(v any) (any, error) { return k.assert(v) }
	return b
}

// ===== REPEATED =====

// repeatedBinding stores []T. Packable kinds accept both the packed and the
// unpacked form on decode regardless of how the field is declared.
func repeatedBinding[T any](f *schema.Field, k kind[T]) *FieldBinding {
	packed := f.Packed && k.packable()
	wt := k.wireType
	if packed {
		wt = WireBytes
	}
	b := newBinding(f, wt, -1)
	b.Packed = packed
	tagSize := TagSize(b.Number)

	payload := func(list []T) int {
		n := 0
		for _, item := range list {
			n += k.size(item)
		}
		return n
	}

	b.initial = func() any { return []T(nil) }
	b.has = func(v any) bool { return len(v.([]T)) > 0 }
	b.encodedLen = func(v any) int {
		list := v.([]T)
		if packed {
			n := payload(list)
			return tagSize + VarintSize(uint64(n)) + n
		}
		return len(list)*tagSize + payload(list)
	}
	b.encode = func(e *Encoder, v any) {
		list := v.([]T)
		if packed {
			e.EncodeTag(b.Number, WireBytes)
			e.EncodeVarint(uint64(payload(list)))
			for _, item := range list {
				k.encode(e, item)
			}
			return
		}
		for _, item := range list {
			e.EncodeTag(b.Number, k.wireType)
			k.encode(e, item)
		}
	}
	b.accepts = func(wt WireType) bool {
		return wt == k.wireType || (k.packable() && wt == WireBytes)
	}
	b.merge = func(d *Decoder, wt WireType, old any) (any, error) {
		list := old.([]T)
		if wt == k.wireType {
			var z T
			item, err := k.mergeOne(d, z, false)
			if err != nil {
				return nil, err
			}
			return append(list, item), nil
		}
		span, err := NewBytesDecoder(d).DecodeRawBytes()
		if err != nil {
			return nil, err
		}
		sub, err := d.sub(span)
		if err != nil {
			return nil, err
		}
		for !sub.EOF() {
			item, err := k.decode(sub)
			if err != nil {
				return nil, err
			}
			list = append(list, item)
		}
		return list, nil
	}
	b.equal = func(a, c any) bool {
		x, y := a.([]T), c.([]T)
		if len(x) != len(y) {
			return false
		}
		for i := range x {
			if !k.equal(x[i], y[i]) {
				return false
			}
		}
		return true
	}
	b.clone = func(v any) any {
		list := v.([]T)
		if list == nil {
			return []T(nil)
		}
		out := make([]T, len(list))
		for i, item := range list {
			out[i] = k.copyOf(item)
		}
		return out
	}
	b.normalize = func(v any) (any, error) {
		list, ok := v.([]T)
		if !ok {
			return nil, fmt.Errorf("repeated %s field expects %T, got %T", k.name, list, v)
		}
		if k.validate != nil {
			for i, item := range list {
				if err := k.validate(item); err != nil {
					return nil, fmt.Errorf("element %d: %w", i, err)
				}
			}
		}
		return list, nil
	}
	return b
}
