package wire

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func TestVarint_Encoding(t *testing.T) {
	tests := []struct {
		name     string
		value    uint64
		expected []byte
	}{
		{"zero", 0, []byte{0x00}},
		{"one", 1, []byte{0x01}},
		{"max one byte", 127, []byte{0x7f}},
		{"min two bytes", 128, []byte{0x80, 0x01}},
		{"300", 300, []byte{0xac, 0x02}},
		{"max int64", math.MaxInt64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x7f}},
		{"bit 63 set", 1 << 63, []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x80, 0x01}},
		{"max uint64", math.MaxUint64, []byte{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0x01}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEncoder()
			e.EncodeVarint(tt.value)
			if !bytes.Equal(e.Bytes(), tt.expected) {
				t.Fatalf("EncodeVarint(%d) = %x, want %x", tt.value, e.Bytes(), tt.expected)
			}
			if got := VarintSize(tt.value); got != len(tt.expected) {
				t.Errorf("VarintSize(%d) = %d, want %d", tt.value, got, len(tt.expected))
			}
			if got := AppendVarint(nil, tt.value); !bytes.Equal(got, tt.expected) {
				t.Errorf("AppendVarint(%d) = %x, want %x", tt.value, got, tt.expected)
			}

			d := NewDecoder(tt.expected)
			v, err := d.DecodeVarint()
			if err != nil {
				t.Fatalf("DecodeVarint failed: %v", err)
			}
			if v != tt.value {
				t.Errorf("DecodeVarint = %d, want %d", v, tt.value)
			}
			if !d.EOF() {
				t.Errorf("expected all %d bytes consumed, %d left", len(tt.expected), d.Remaining())
			}
		})
	}
}

func TestVarint_DecodeErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr error
	}{
		{"empty", []byte{}, ErrTruncated},
		{"continuation without end", []byte{0x80}, ErrTruncated},
		{"nine continuation bytes", bytes.Repeat([]byte{0xff}, 9), ErrTruncated},
		{"tenth byte too large", append(bytes.Repeat([]byte{0xff}, 9), 0x02), ErrOverflow},
		{"eleven bytes", append(bytes.Repeat([]byte{0x80}, 10), 0x00), ErrOverflow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(tt.data)
			_, err := d.DecodeVarint()
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if d.Pos() != 0 {
				t.Errorf("cursor moved to %d on failure", d.Pos())
			}
		})
	}
}

func TestVarint_ConsumeVarint(t *testing.T) {
	v, n, err := ConsumeVarint([]byte{0xac, 0x02, 0xff})
	if err != nil {
		t.Fatalf("ConsumeVarint failed: %v", err)
	}
	if v != 300 || n != 2 {
		t.Errorf("ConsumeVarint = (%d, %d), want (300, 2)", v, n)
	}
}

func TestVarint_NegativeInt32TakesTenBytes(t *testing.T) {
	e := NewEncoder()
	NewVarintEncoder(e).EncodeInt32(-1)
	if e.Len() != MaxVarintLen {
		t.Fatalf("int32(-1) encoded in %d bytes, want %d", e.Len(), MaxVarintLen)
	}
	got, err := NewVarintDecoder(NewDecoder(e.Bytes())).DecodeInt32()
	if err != nil {
		t.Fatalf("DecodeInt32 failed: %v", err)
	}
	if got != -1 {
		t.Errorf("DecodeInt32 = %d, want -1", got)
	}
}

func TestZigZag(t *testing.T) {
	tests32 := []struct {
		value   int32
		encoded uint64
	}{
		{0, 0},
		{-1, 1},
		{1, 2},
		{-2, 3},
		{math.MaxInt32, 4294967294},
		{math.MinInt32, 4294967295},
	}
	for _, tt := range tests32 {
		if got := EncodeZigZag32(tt.value); got != tt.encoded {
			t.Errorf("EncodeZigZag32(%d) = %d, want %d", tt.value, got, tt.encoded)
		}
		if got := DecodeZigZag32(tt.encoded); got != tt.value {
			t.Errorf("DecodeZigZag32(%d) = %d, want %d", tt.encoded, got, tt.value)
		}
	}

	tests64 := []struct {
		value   int64
		encoded uint64
	}{
		{0, 0},
		{-1, 1},
		{1, 2},
		{math.MaxInt64, math.MaxUint64 - 1},
		{math.MinInt64, math.MaxUint64},
	}
	for _, tt := range tests64 {
		if got := EncodeZigZag64(tt.value); got != tt.encoded {
			t.Errorf("EncodeZigZag64(%d) = %d, want %d", tt.value, got, tt.encoded)
		}
		if got := DecodeZigZag64(tt.encoded); got != tt.value {
			t.Errorf("DecodeZigZag64(%d) = %d, want %d", tt.encoded, got, tt.value)
		}
	}
}

func TestFixed_LittleEndian(t *testing.T) {
	e := NewEncoder()
	e.EncodeFixed32(0x01020304)
	e.EncodeFixed64(0x0102030405060708)
	want := []byte{0x04, 0x03, 0x02, 0x01, 0x08, 0x07, 0x06, 0x05, 0x04, 0x03, 0x02, 0x01}
	if !bytes.Equal(e.Bytes(), want) {
		t.Fatalf("fixed encoding = %x, want %x", e.Bytes(), want)
	}

	d := NewDecoder(e.Bytes())
	v32, err := d.DecodeFixed32()
	if err != nil || v32 != 0x01020304 {
		t.Fatalf("DecodeFixed32 = %x, %v", v32, err)
	}
	v64, err := d.DecodeFixed64()
	if err != nil || v64 != 0x0102030405060708 {
		t.Fatalf("DecodeFixed64 = %x, %v", v64, err)
	}
}

func TestFixed_Floats(t *testing.T) {
	e := NewEncoder()
	fe := NewFixedEncoder(e)
	fe.EncodeFloat32(float32(math.Inf(-1)))
	fe.EncodeFloat64(math.NaN())

	fd := NewFixedDecoder(NewDecoder(e.Bytes()))
	f, err := fd.DecodeFloat32()
	if err != nil || !math.IsInf(float64(f), -1) {
		t.Fatalf("DecodeFloat32 = %v, %v", f, err)
	}
	g, err := fd.DecodeFloat64()
	if err != nil || !math.IsNaN(g) {
		t.Fatalf("DecodeFloat64 = %v, %v", g, err)
	}
}

func TestFixed_Truncated(t *testing.T) {
	d := NewDecoder([]byte{0x01, 0x02, 0x03})
	if _, err := d.DecodeFixed32(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
	d = NewDecoder(make([]byte, 7))
	if _, err := d.DecodeFixed64(); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestBytes_Decoding(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		e := NewEncoder()
		e.EncodeString("héllo")
		e.EncodeBytes([]byte{0x00, 0xff})
		if StringSize("héllo") != 7 {
			t.Errorf("StringSize = %d, want 7", StringSize("héllo"))
		}

		d := NewDecoder(e.Bytes())
		s, err := NewBytesDecoder(d).DecodeString()
		if err != nil || s != "héllo" {
			t.Fatalf("DecodeString = %q, %v", s, err)
		}
		b, err := d.DecodeBytes()
		if err != nil || !bytes.Equal(b, []byte{0x00, 0xff}) {
			t.Fatalf("DecodeBytes = %x, %v", b, err)
		}
	})

	t.Run("length past end", func(t *testing.T) {
		d := NewDecoder([]byte{0x05, 'a', 'b'})
		if _, err := d.DecodeBytes(); !errors.Is(err, ErrTruncated) {
			t.Fatalf("expected ErrTruncated, got %v", err)
		}
		if d.Pos() != 0 {
			t.Errorf("cursor moved to %d on failure", d.Pos())
		}
	})

	t.Run("invalid utf8", func(t *testing.T) {
		d := NewDecoder([]byte{0x02, 0xc3, 0x28})
		if _, err := NewBytesDecoder(d).DecodeString(); !errors.Is(err, ErrInvalidUTF8) {
			t.Fatalf("expected ErrInvalidUTF8, got %v", err)
		}
	})

	t.Run("decoded bytes do not alias input", func(t *testing.T) {
		data := []byte{0x01, 'x'}
		b, err := NewDecoder(data).DecodeBytes()
		if err != nil {
			t.Fatal(err)
		}
		data[1] = 'y'
		if b[0] != 'x' {
			t.Error("DecodeBytes result shares the input buffer")
		}
	})
}

func TestTags(t *testing.T) {
	if tag := MakeTag(1, WireVarint); tag != 0x08 {
		t.Errorf("MakeTag(1, varint) = %#x, want 0x08", tag)
	}
	if tag := MakeTag(2, WireBytes); tag != 0x12 {
		t.Errorf("MakeTag(2, bytes) = %#x, want 0x12", tag)
	}
	num, wt := ParseTag(0x7a)
	if num != 15 || wt != WireBytes {
		t.Errorf("ParseTag(0x7a) = (%d, %s), want (15, bytes)", num, wt)
	}
	if TagSize(15) != 1 || TagSize(16) != 2 || TagSize(MaxFieldNumber) != 5 {
		t.Errorf("unexpected TagSize results: %d %d %d", TagSize(15), TagSize(16), TagSize(MaxFieldNumber))
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"field zero", []byte{0x00}},
		{"field zero with wire type", []byte{0x02}},
		{"field above max", AppendVarint(nil, uint64(MaxFieldNumber+1)<<3)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewDecoder(tt.data).DecodeTag()
			if !errors.Is(err, ErrInvalidFieldNumber) {
				t.Fatalf("expected ErrInvalidFieldNumber, got %v", err)
			}
		})
	}
}

func TestDecoder_SkipField(t *testing.T) {
	// varint, fixed64, bytes, fixed32 and a group holding a nested group
	e := NewEncoder()
	e.EncodeTag(1, WireVarint)
	e.EncodeVarint(300)
	e.EncodeTag(2, WireFixed64)
	e.EncodeFixed64(7)
	e.EncodeTag(3, WireBytes)
	e.EncodeString("skip me")
	e.EncodeTag(4, WireFixed32)
	e.EncodeFixed32(9)
	e.EncodeTag(5, WireStartGroup)
	e.EncodeTag(6, WireStartGroup)
	e.EncodeTag(7, WireVarint)
	e.EncodeVarint(1)
	e.EncodeTag(6, WireEndGroup)
	e.EncodeTag(5, WireEndGroup)

	d := NewDecoder(e.Bytes())
	for !d.EOF() {
		num, wt, err := d.DecodeTag()
		if err != nil {
			t.Fatalf("DecodeTag failed: %v", err)
		}
		if err := d.SkipField(num, wt); err != nil {
			t.Fatalf("SkipField(%d, %s) failed: %v", num, wt, err)
		}
	}

	t.Run("reserved wire types", func(t *testing.T) {
		for _, wt := range []WireType{6, 7} {
			if err := NewDecoder([]byte{0x00}).SkipField(1, wt); !errors.Is(err, ErrInvalidWireType) {
				t.Errorf("wire type %d: expected ErrInvalidWireType, got %v", wt, err)
			}
		}
	})

	t.Run("mismatched end group", func(t *testing.T) {
		e := NewEncoder()
		e.EncodeTag(2, WireEndGroup)
		err := NewDecoder(e.Bytes()).SkipField(1, WireStartGroup)
		if !errors.Is(err, ErrInvalidWireType) {
			t.Fatalf("expected ErrInvalidWireType, got %v", err)
		}
	})

	t.Run("unterminated group", func(t *testing.T) {
		err := NewDecoder(nil).SkipField(1, WireStartGroup)
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("expected ErrTruncated, got %v", err)
		}
	})
}
