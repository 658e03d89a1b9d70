package wire

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/anirudhraja/pbcodec/schema"
)

// Map entry field numbers.
const (
	mapKeyNumber   FieldNumber = 1
	mapValueNumber FieldNumber = 2
)

// MapDecoder handles map decoding operations
type MapDecoder struct {
	decoder *Decoder
}

// MapEncoder handles map encoding operations
type MapEncoder struct {
	encoder *Encoder
}

// NewMapDecoder creates a new map decoder
func NewMapDecoder(d *Decoder) *MapDecoder {
	return &MapDecoder{decoder: d}
}

// NewMapEncoder creates a new map encoder
func NewMapEncoder(e *Encoder) *MapEncoder {
	return &MapEncoder{encoder: e}
}

// DECODER METHODS

// DecodeMapEntry decodes one length-delimited map entry. A missing key or
// value takes the zero value of its kind; other fields inside the entry are
// skipped.
func (md *MapDecoder) DecodeMapEntry(keyKind, valueKind anyKind) (any, any, error) {
	d := md.decoder
	span, err := NewBytesDecoder(d).DecodeRawBytes()
	if err != nil {
		return nil, nil, err
	}
	entry, err := d.sub(span)
	if err != nil {
		return nil, nil, err
	}

	var key, value any
	for !entry.EOF() {
		num, wt, err := entry.DecodeTag()
		if err != nil {
			return nil, nil, err
		}

		switch {
		case num == mapKeyNumber && wt == keyKind.wireType:
			if key, err = keyKind.decode(entry); err != nil {
				return nil, nil, fmt.Errorf("failed to decode map key: %w", err)
			}
		case num == mapValueNumber && wt == valueKind.wireType:
			if value, err = valueKind.decode(entry); err != nil {
				return nil, nil, fmt.Errorf("failed to decode map value: %w", err)
			}
		default:
			if (num == mapKeyNumber || num == mapValueNumber) && entry.strict() {
				return nil, nil, fmt.Errorf("%w: %s for map entry field %d", ErrInvalidWireType, wt, num)
			}
			if err := entry.SkipField(num, wt); err != nil {
				return nil, nil, err
			}
		}
	}

	if key == nil {
		key = keyKind.zero()
	}
	if value == nil {
		value = valueKind.zero()
	}
	return key, value, nil
}

// ENCODER METHODS

// EncodeMapEntry writes one entry of a map field, tag included. Key and value
// are always written.
func (me *MapEncoder) EncodeMapEntry(fieldNumber FieldNumber, key, value any, keyKind, valueKind anyKind) {
	e := me.encoder
	e.EncodeTag(fieldNumber, WireBytes)
	e.EncodeVarint(uint64(mapEntrySize(key, value, keyKind, valueKind)))
	e.EncodeTag(mapKeyNumber, keyKind.wireType)
	keyKind.encode(e, key)
	e.EncodeTag(mapValueNumber, valueKind.wireType)
	valueKind.encode(e, value)
}

// EncodeMap writes every entry of m in ascending key order.
func (me *MapEncoder) EncodeMap(fieldNumber FieldNumber, m map[any]any, keyKind, valueKind anyKind) {
	for _, key := range sortedKeys(m, keyKind) {
		me.EncodeMapEntry(fieldNumber, key, m[key], keyKind, valueKind)
	}
}

// UTILITY FUNCTIONS

// mapEntrySize is the payload length of one entry, excluding its own tag and
// length prefix. Both entry tags fit in one byte.
func mapEntrySize(key, value any, keyKind, valueKind anyKind) int {
	return 1 + keyKind.size(key) + 1 + valueKind.size(value)
}

func sortedKeys(m map[any]any, keyKind anyKind) []any {
	keys := make([]any, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyKind.less(keys[i], keys[j]) })
	return keys
}

// mapBinding stores map[any]any keyed by the Go type of the key kind. Entries
// decoded later overwrite earlier ones with the same key.
func mapBinding(f *schema.Field, keyKind, valueKind anyKind) *FieldBinding {
	b := newBinding(f, WireBytes, -1)
	tagSize := TagSize(b.Number)

	b.initial = func() any { return map[any]any(nil) }
	b.has = func(v any) bool { return len(v.(map[any]any)) > 0 }
	b.encodedLen = func(v any) int {
		n := 0
		for key, value := range v.(map[any]any) {
			size := mapEntrySize(key, value, keyKind, valueKind)
			n += tagSize + VarintSize(uint64(size)) + size
		}
		return n
	}
	b.encode = func(e *Encoder, v any) {
		NewMapEncoder(e).EncodeMap(b.Number, v.(map[any]any), keyKind, valueKind)
	}
	b.accepts = func(wt WireType) bool { return wt == WireBytes }
	b.merge = func(d *Decoder, _ WireType, old any) (any, error) {
		key, value, err := NewMapDecoder(d).DecodeMapEntry(keyKind, valueKind)
		if err != nil {
			return nil, err
		}
		m := old.(map[any]any)
		if m == nil {
			m = make(map[any]any)
		}
		m[key] = value
		return m, nil
	}
	b.equal = func(a, c any) bool {
		x, y := a.(map[any]any), c.(map[any]any)
		if len(x) != len(y) {
			return false
		}
		for key, xv := range x {
			yv, ok := y[key]
			if !ok || !valueKind.equal(xv, yv) {
				return false
			}
		}
		return true
	}
	b.clone = func(v any) any {
		m := v.(map[any]any)
		if m == nil {
			return map[any]any(nil)
		}
		out := make(map[any]any, len(m))
		for key, value := range m {
			out[key] = valueKind.clone(value)
		}
		return out
	}
	b.normalize = func(v any) (any, error) {
		return normalizeMap(v, keyKind, valueKind)
	}
	return b
}

// normalizeMap accepts map[any]any or any typed Go map whose keys and values
// match the entry kinds, and returns a map[any]any.
func normalizeMap(v any, keyKind, valueKind anyKind) (map[any]any, error) {
	if m, ok := v.(map[any]any); ok {
		for key, value := range m {
			if _, err := keyKind.assert(key); err != nil {
				return nil, fmt.Errorf("map key: %w", err)
			}
			if _, err := valueKind.assert(value); err != nil {
				return nil, fmt.Errorf("map value for key %v: %w", key, err)
			}
		}
		return m, nil
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, fmt.Errorf("map field expects a map, got %T", v)
	}
	out := make(map[any]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		key, err := keyKind.assert(iter.Key().Interface())
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		value, err := valueKind.assert(iter.Value().Interface())
		if err != nil {
			return nil, fmt.Errorf("map value for key %v: %w", key, err)
		}
		out[key] = value
	}
	return out, nil
}
