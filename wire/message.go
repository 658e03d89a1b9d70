package wire

import (
	"bytes"
	"fmt"
	"io"

	"github.com/anirudhraja/pbcodec/schema"
)

// Message is a dynamic message value: one storage slot per field of its
// descriptor. Singular fields hold their value directly, optional fields and
// oneof members hold nil while absent, repeated fields hold a []T and maps a
// map[any]any. Scalars use the Go types int32, int64, uint32, uint64, bool,
// float32, float64, string and []byte; enums are int32; embedded messages are
// *Message.
//
// A Message is not safe for concurrent mutation.
type Message struct {
	desc    *Descriptor
	values  []any
	seen    []bool // set once a field is decoded or assigned
	oneofs  []int  // active field index per group, -1 when empty
	unknown []byte
}

// New returns an empty message: every field at its default.
func (d *Descriptor) New() *Message {
	m := &Message{
		desc:   d,
		values: make([]any, len(d.fields)),
		seen:   make([]bool, len(d.fields)),
		oneofs: make([]int, len(d.oneofs)),
	}
	m.init()
	return m
}

// NewMessage is shorthand for desc.New().
func NewMessage(desc *Descriptor) *Message {
	return desc.New()
}

func (m *Message) init() {
	for i, b := range m.desc.fields {
		m.values[i] = b.initial()
		m.seen[i] = false
	}
	for i := range m.oneofs {
		m.oneofs[i] = -1
	}
	m.unknown = nil
}

// Descriptor returns the message's compiled type.
func (m *Message) Descriptor() *Descriptor {
	return m.desc
}

// ===== FIELD ACCESS =====

// Get returns the stored value of the named field, or nil for unknown names
// and absent optional fields.
func (m *Message) Get(name string) any {
	b := m.desc.byName[name]
	if b == nil {
		return nil
	}
	return m.values[b.index]
}

// Set assigns the named field. Setting a oneof member clears the other members
// of its group; setting nil clears the field.
func (m *Message) Set(name string, v any) error {
	b := m.desc.byName[name]
	if b == nil {
		return fmt.Errorf("message %s has no field %q", m.desc.name, name)
	}
	if v == nil {
		m.clear(b)
		return nil
	}
	nv, err := b.normalize(v)
	if err != nil {
		return wrapWithField(err, name)
	}
	if b.oneof >= 0 {
		m.activate(b)
	}
	m.values[b.index] = nv
	m.seen[b.index] = true
	return nil
}

// Has reports whether the named field is present: set for optional fields and
// oneof members, non-empty for repeated fields and maps, assigned or decoded
// for required fields, and different from the default for singular fields.
func (m *Message) Has(name string) bool {
	b := m.desc.byName[name]
	if b == nil {
		return false
	}
	if b.Label == schema.LabelRequired {
		return m.seen[b.index]
	}
	return b.has(m.values[b.index])
}

// Clear resets the named field to its initial state.
func (m *Message) Clear(name string) {
	if b := m.desc.byName[name]; b != nil {
		m.clear(b)
	}
}

func (m *Message) clear(b *FieldBinding) {
	m.values[b.index] = b.initial()
	m.seen[b.index] = false
	if b.oneof >= 0 && m.oneofs[b.oneof] == b.index {
		m.oneofs[b.oneof] = -1
	}
}

// activate makes b the live member of its oneof group, dropping the previous
// member's value.
func (m *Message) activate(b *FieldBinding) {
	if active := m.oneofs[b.oneof]; active >= 0 && active != b.index {
		m.values[active] = nil
		m.seen[active] = false
	}
	m.oneofs[b.oneof] = b.index
}

// WhichOneof returns the name of the populated member of group, or "".
func (m *Message) WhichOneof(group string) string {
	for i, name := range m.desc.oneofs {
		if name != group {
			continue
		}
		if active := m.oneofs[i]; active >= 0 {
			return m.desc.fields[active].Name
		}
		return ""
	}
	return ""
}

// Unknown returns the retained bytes of unrecognized fields. It is only
// populated when decoding with DecodeOptions.KeepUnknown.
func (m *Message) Unknown() []byte {
	return m.unknown
}

// SetUnknown replaces the retained unknown bytes. They must be well-formed
// fields; they are written verbatim after the known fields.
func (m *Message) SetUnknown(b []byte) {
	m.unknown = b
}

// Reset returns every field to its default and drops unknown bytes.
func (m *Message) Reset() {
	m.init()
}

// Clone returns a deep copy. Cloning nil returns nil.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	out := &Message{
		desc:   m.desc,
		values: make([]any, len(m.values)),
		seen:   append([]bool(nil), m.seen...),
		oneofs: append([]int(nil), m.oneofs...),
	}
	for i, b := range m.desc.fields {
		out.values[i] = b.clone(m.values[i])
	}
	if m.unknown != nil {
		out.unknown = append([]byte{}, m.unknown...)
	}
	return out
}

// Equal reports whether both messages share a descriptor and hold equal
// values. Floats compare bitwise, so NaN equals NaN. Two nil messages are
// equal; nil never equals an empty message.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == nil && o == nil
	}
	if m.desc != o.desc {
		return false
	}
	for i, b := range m.desc.fields {
		if !b.equal(m.values[i], o.values[i]) {
			return false
		}
	}
	return bytes.Equal(m.unknown, o.unknown)
}

// ===== ENCODING =====

// EncodedLen returns the exact number of bytes Marshal produces. A nil message
// encodes to nothing.
func (m *Message) EncodedLen() int {
	if m == nil {
		return 0
	}
	n := 0
	for i, b := range m.desc.fields {
		if v := m.values[i]; b.has(v) {
			n += b.encodedLen(v)
		}
	}
	return n + len(m.unknown)
}

// encodeTo appends every present field in ascending number order, then the
// retained unknown bytes.
func (m *Message) encodeTo(e *Encoder) {
	if m == nil {
		return
	}
	for i, b := range m.desc.fields {
		if v := m.values[i]; b.has(v) {
			b.encode(e, v)
		}
	}
	e.EncodeRaw(m.unknown)
}

// Marshal encodes the message into a buffer sized by EncodedLen.
func (m *Message) Marshal() []byte {
	e := NewEncoderSize(m.EncodedLen())
	m.encodeTo(e)
	return e.Bytes()
}

// MarshalAppend appends the encoding to b, growing it at most once.
func (m *Message) MarshalAppend(b []byte) []byte {
	e := newEncoderOn(b)
	e.Grow(m.EncodedLen())
	m.encodeTo(e)
	return e.Bytes()
}

// WriteTo writes the encoding to w.
func (m *Message) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(m.Marshal())
	return int64(n), err
}

// ===== DECODING =====

// mergeFrom consumes d to the end, folding every field into m. Required
// fields are checked by the caller once the whole input has been merged,
// since a later occurrence of an embedded message may supply them.
func (m *Message) mergeFrom(d *Decoder) error {
	log := d.opts.logger()
	for !d.EOF() {
		tagStart := d.pos
		num, wt, err := d.DecodeTag()
		if err != nil {
			return err
		}

		b := m.desc.byNumber[num]
		if b != nil && !b.accepts(wt) {
			if d.strict() {
				return wrapWithField(fmt.Errorf("%w: %s for field %d", ErrInvalidWireType, wt, num), b.Name)
			}
			log.Trace().
				Str("message", m.desc.name).
				Int32("field", int32(num)).
				Str("wire_type", wt.String()).
				Msg("wire type mismatch, skipping")
			b = nil
		}

		if b == nil {
			if wt == WireEndGroup {
				return fmt.Errorf("%w: unexpected end group %d", ErrInvalidWireType, num)
			}
			if err := d.SkipField(num, wt); err != nil {
				return err
			}
			if d.keepUnknown() {
				m.unknown = append(m.unknown, d.buf[tagStart:d.pos]...)
			}
			log.Trace().
				Str("message", m.desc.name).
				Int32("field", int32(num)).
				Str("wire_type", wt.String()).
				Msg("skipped unknown field")
			continue
		}

		if err := m.mergeField(b, wt, d); err != nil {
			return wrapWithField(err, b.Name)
		}
	}
	return nil
}

// mergeSpan reads one length-delimited embedded message from d and merges it.
func (m *Message) mergeSpan(d *Decoder) error {
	span, err := NewBytesDecoder(d).DecodeRawBytes()
	if err != nil {
		return err
	}
	sub, err := d.sub(span)
	if err != nil {
		return err
	}
	return m.mergeFrom(sub)
}

func (m *Message) mergeField(b *FieldBinding, wt WireType, d *Decoder) error {
	old := m.values[b.index]
	if b.oneof >= 0 && m.oneofs[b.oneof] != b.index {
		m.activate(b)
		old = nil
	}
	v, err := b.merge(d, wt, old)
	if err != nil {
		return err
	}
	m.values[b.index] = v
	m.seen[b.index] = true
	return nil
}

// checkInitialized reports the first required field that was never set or
// decoded, in m or in any embedded message reachable from it.
func (m *Message) checkInitialized() error {
	if m == nil {
		return nil
	}
	for _, b := range m.desc.required {
		if !m.seen[b.index] {
			return missingRequired(m.desc.name, b.Name)
		}
	}
	for i, b := range m.desc.fields {
		if b.message == nil {
			continue
		}
		var err error
		switch v := m.values[i].(type) {
		case *Message:
			err = v.checkInitialized()
		case []*Message:
			for _, item := range v {
				if err = item.checkInitialized(); err != nil {
					break
				}
			}
		case map[any]any:
			for _, value := range v {
				if item, ok := value.(*Message); ok {
					if err = item.checkInitialized(); err != nil {
						break
					}
				}
			}
		}
		if err != nil {
			return wrapWithField(err, b.Name)
		}
	}
	return nil
}

// ===== WRAPPERS =====

// SetWrapped stores v in the named well-known wrapper field, allocating the
// wrapper message around it.
func (m *Message) SetWrapped(name string, v any) error {
	b := m.desc.byName[name]
	if b == nil || b.message == nil || !b.message.schema.IsWrapper || b.Label == schema.LabelRepeated {
		return fmt.Errorf("field %q of %s is not a singular wrapper", name, m.desc.name)
	}
	w := b.message.New()
	if err := w.Set("value", v); err != nil {
		return wrapWithField(err, name)
	}
	return m.Set(name, w)
}

// WrapperValue returns the scalar held by a wrapper message, or nil when m is
// nil or not a wrapper.
func WrapperValue(m *Message) any {
	if m == nil || !m.desc.schema.IsWrapper {
		return nil
	}
	return m.Get("value")
}
