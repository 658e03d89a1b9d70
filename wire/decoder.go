package wire

import (
	"fmt"
)

// Decoder handles low-level protobuf wire format decoding. It is a bounded
// cursor over buf: pos never moves past len(buf).
type Decoder struct {
	buf   []byte
	pos   int
	depth int
	opts  *DecodeOptions
}

// NewDecoder creates a new wire format decoder
func NewDecoder(data []byte) *Decoder {
	return &Decoder{
		buf: data,
		pos: 0,
	}
}

// NewDecoderWithOptions creates a decoder that applies opts to every message
// decoded through it.
func NewDecoderWithOptions(data []byte, opts DecodeOptions) *Decoder {
	return &Decoder{
		buf:  data,
		pos:  0,
		opts: &opts,
	}
}

// Pos returns the current read offset.
func (d *Decoder) Pos() int {
	return d.pos
}

// Remaining returns the number of unread bytes.
func (d *Decoder) Remaining() int {
	return len(d.buf) - d.pos
}

// EOF reports whether every byte has been consumed.
func (d *Decoder) EOF() bool {
	return d.pos >= len(d.buf)
}

// Depth returns how many embedded messages enclose this decoder.
func (d *Decoder) Depth() int {
	return d.depth
}

// sub returns a decoder over span that shares options and sits one nesting
// level deeper. It fails once the configured depth is exceeded.
func (d *Decoder) sub(span []byte) (*Decoder, error) {
	if d.depth+1 > d.opts.maxDepth() {
		return nil, ErrRecursionLimit
	}
	return &Decoder{
		buf:   span,
		depth: d.depth + 1,
		opts:  d.opts,
	}, nil
}

// take consumes exactly n bytes.
func (d *Decoder) take(n int) ([]byte, error) {
	if n < 0 || n > len(d.buf)-d.pos {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, len(d.buf)-d.pos)
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// DecodeTag reads a tag and validates its field number.
func (d *Decoder) DecodeTag() (FieldNumber, WireType, error) {
	v, err := d.DecodeVarint()
	if err != nil {
		return 0, 0, err
	}
	if v>>3 > uint64(MaxFieldNumber) {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidFieldNumber, v>>3)
	}
	fieldNumber, wireType := ParseTag(Tag(v))
	if fieldNumber < MinFieldNumber {
		return 0, 0, fmt.Errorf("%w: %d", ErrInvalidFieldNumber, fieldNumber)
	}
	return fieldNumber, wireType, nil
}

// SkipField skips exactly one value of the given wire type without
// interpreting it. fieldNumber is only used to match the end of a group.
func (d *Decoder) SkipField(fieldNumber FieldNumber, wireType WireType) error {
	switch wireType {
	case WireVarint:
		vd := NewVarintDecoder(d)
		return vd.SkipVarint()
	case WireFixed64:
		_, err := d.take(8)
		return err
	case WireBytes:
		bd := NewBytesDecoder(d)
		return bd.SkipBytes()
	case WireFixed32:
		_, err := d.take(4)
		return err
	case WireStartGroup:
		return d.skipGroup(fieldNumber)
	default:
		return fmt.Errorf("%w: %d", ErrInvalidWireType, wireType)
	}
}

// skipGroup consumes fields up to the matching end-group tag.
func (d *Decoder) skipGroup(fieldNumber FieldNumber) error {
	if d.depth+1 > d.opts.maxDepth() {
		return ErrRecursionLimit
	}
	d.depth++
	defer func() { d.depth-- }()

	for {
		if d.EOF() {
			return fmt.Errorf("%w: unterminated group %d", ErrTruncated, fieldNumber)
		}
		num, wt, err := d.DecodeTag()
		if err != nil {
			return err
		}
		if wt == WireEndGroup {
			if num != fieldNumber {
				return fmt.Errorf("%w: end group %d inside group %d", ErrInvalidWireType, num, fieldNumber)
			}
			return nil
		}
		if err := d.SkipField(num, wt); err != nil {
			return err
		}
	}
}

func (d *Decoder) strict() bool {
	return d.opts != nil && d.opts.StrictWireType
}

func (d *Decoder) keepUnknown() bool {
	return d.opts != nil && d.opts.KeepUnknown
}
