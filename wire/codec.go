package wire

import (
	"fmt"
)

// MessageDecoder handles embedded message decoding operations
type MessageDecoder struct {
	decoder *Decoder
}

// MessageEncoder handles embedded message encoding operations
type MessageEncoder struct {
	encoder *Encoder
}

// NewMessageDecoder creates a new message decoder
func NewMessageDecoder(d *Decoder) *MessageDecoder {
	return &MessageDecoder{decoder: d}
}

// NewMessageEncoder creates a new message encoder
func NewMessageEncoder(e *Encoder) *MessageEncoder {
	return &MessageEncoder{encoder: e}
}

// DECODER METHODS

// DecodeMessage decodes a length-prefixed message of type desc. Required
// fields are not checked; that happens once for the outermost message.
func (md *MessageDecoder) DecodeMessage(desc *Descriptor) (*Message, error) {
	m := desc.New()
	if err := m.mergeSpan(md.decoder); err != nil {
		return nil, err
	}
	return m, nil
}

// DecodeLimited decodes a message from exactly the next n bytes. The cursor is
// left just past them, so the caller decides what trailing bytes mean.
func (md *MessageDecoder) DecodeLimited(n int, desc *Descriptor) (*Message, error) {
	d := md.decoder
	span, err := d.take(n)
	if err != nil {
		return nil, err
	}
	m := desc.New()
	sub := &Decoder{buf: span, depth: d.depth, opts: d.opts}
	if err := m.mergeFrom(sub); err != nil {
		return nil, err
	}
	if err := m.checkInitialized(); err != nil {
		return nil, err
	}
	return m, nil
}

// ENCODER METHODS

// EncodeMessage writes m with a varint length prefix.
func (me *MessageEncoder) EncodeMessage(m *Message) {
	me.encoder.EncodeVarint(uint64(m.EncodedLen()))
	m.encodeTo(me.encoder)
}

// ===== TOP-LEVEL ENTRY POINTS =====

// Unmarshal decodes data as a complete message of type desc with default
// options.
func Unmarshal(data []byte, desc *Descriptor) (*Message, error) {
	return DecodeOptions{}.Unmarshal(data, desc)
}

// Merge folds data into m with default options. See DecodeOptions.Merge.
func Merge(m *Message, data []byte) error {
	return DecodeOptions{}.Merge(m, data)
}

// Unmarshal decodes data as a complete message of type desc. Every byte of
// data belongs to the message; nothing is returned on error.
func (o DecodeOptions) Unmarshal(data []byte, desc *Descriptor) (*Message, error) {
	m := desc.New()
	err := m.mergeFrom(NewDecoderWithOptions(data, o))
	if err == nil {
		err = m.checkInitialized()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode message %s: %w", desc.name, err)
	}
	return m, nil
}

// Merge folds data into m: scalars are overwritten, repeated fields appended,
// map entries inserted and embedded messages merged recursively. m is left
// untouched if data is malformed.
func (o DecodeOptions) Merge(m *Message, data []byte) error {
	work := m.Clone()
	err := work.mergeFrom(NewDecoderWithOptions(data, o))
	if err == nil {
		err = work.checkInitialized()
	}
	if err != nil {
		return fmt.Errorf("failed to merge into message %s: %w", m.desc.name, err)
	}
	*m = *work
	return nil
}

// DecodeLimited decodes a message from the next n bytes of d. See
// MessageDecoder.DecodeLimited.
func DecodeLimited(d *Decoder, n int, desc *Descriptor) (*Message, error) {
	return NewMessageDecoder(d).DecodeLimited(n, desc)
}

// ===== LENGTH-DELIMITED STREAMS =====

// AppendDelimited appends m to b prefixed by its varint length, the framing
// used to write several messages to one stream.
func AppendDelimited(b []byte, m *Message) []byte {
	e := newEncoderOn(b)
	n := m.EncodedLen()
	e.Grow(VarintSize(uint64(n)) + n)
	NewMessageEncoder(e).EncodeMessage(m)
	return e.Bytes()
}

// ReadDelimited reads one length-prefixed message from d.
func ReadDelimited(d *Decoder, desc *Descriptor) (*Message, error) {
	start := d.pos
	n, err := d.DecodeVarint()
	if err != nil {
		return nil, err
	}
	if n > uint64(d.Remaining()) {
		d.pos = start
		return nil, fmt.Errorf("%w: message needs %d bytes, have %d", ErrTruncated, n, d.Remaining())
	}
	return DecodeLimited(d, int(n), desc)
}
