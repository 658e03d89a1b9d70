package wire

import (
	"fmt"
	"testing"

	"github.com/anirudhraja/pbcodec/schema"
)

// testResolver is a Resolver over fixed maps.
type testResolver struct {
	messages map[string]*schema.Message
	enums    map[string]*schema.Enum
}

func (r *testResolver) GetMessage(name string) (*schema.Message, error) {
	if m, ok := r.messages[name]; ok {
		return m, nil
	}
	return nil, fmt.Errorf("message %s not found", name)
}

func (r *testResolver) GetEnum(name string) (*schema.Enum, error) {
	if e, ok := r.enums[name]; ok {
		return e, nil
	}
	return nil, fmt.Errorf("enum %s not found", name)
}

func newTestResolver(messages []*schema.Message, enums []*schema.Enum) *testResolver {
	r := &testResolver{
		messages: make(map[string]*schema.Message),
		enums:    make(map[string]*schema.Enum),
	}
	for _, m := range messages {
		r.messages[m.Name] = m
	}
	for _, e := range enums {
		r.enums[e.Name] = e
	}
	return r
}

func scalar(name string, number int32, prim schema.PrimitiveType, label schema.FieldLabel) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  label,
		Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: prim},
	}
}

func packed(name string, number int32, prim schema.PrimitiveType) *schema.Field {
	f := scalar(name, number, prim, schema.LabelRepeated)
	f.Packed = true
	return f
}

func messageField(name string, number int32, typeName string, label schema.FieldLabel) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  label,
		Type:   schema.FieldType{Kind: schema.KindMessage, MessageType: typeName},
	}
}

func enumField(name string, number int32, typeName string, label schema.FieldLabel) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  label,
		Type:   schema.FieldType{Kind: schema.KindEnum, EnumType: typeName},
	}
}

func mapField(name string, number int32, key, value schema.FieldType) *schema.Field {
	return &schema.Field{
		Name:   name,
		Number: number,
		Label:  schema.LabelRepeated,
		Type:   schema.FieldType{Kind: schema.KindMap, MapKey: &key, MapValue: &value},
	}
}

func primitiveType(prim schema.PrimitiveType) schema.FieldType {
	return schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: prim}
}

func mustCompile(t testing.TB, msg *schema.Message, r Resolver) *Descriptor {
	t.Helper()
	desc, err := NewCompiler(r).Compile(msg)
	if err != nil {
		t.Fatalf("Failed to compile %s: %v", msg.Name, err)
	}
	return desc
}

func mustSet(t testing.TB, m *Message, name string, v any) {
	t.Helper()
	if err := m.Set(name, v); err != nil {
		t.Fatalf("Set(%q) failed: %v", name, err)
	}
}

// checkRoundTrip encodes m, verifies the length contract and decodes the
// result back into an equal message.
func checkRoundTrip(t *testing.T, m *Message) []byte {
	t.Helper()
	data := m.Marshal()
	if len(data) != m.EncodedLen() {
		t.Fatalf("EncodedLen() = %d, but Marshal produced %d bytes", m.EncodedLen(), len(data))
	}
	decoded, err := Unmarshal(data, m.Descriptor())
	if err != nil {
		t.Fatalf("Failed to decode: %v", err)
	}
	if !decoded.Equal(m) {
		t.Fatalf("decoded message differs from original")
	}
	return data
}

var allScalars = []schema.PrimitiveType{
	schema.TypeDouble,
	schema.TypeFloat,
	schema.TypeInt32,
	schema.TypeInt64,
	schema.TypeUint32,
	schema.TypeUint64,
	schema.TypeSint32,
	schema.TypeSint64,
	schema.TypeFixed32,
	schema.TypeFixed64,
	schema.TypeSfixed32,
	schema.TypeSfixed64,
	schema.TypeBool,
	schema.TypeString,
	schema.TypeBytes,
}

// sampleValue returns a non-default value of the Go type used for prim.
func sampleValue(prim schema.PrimitiveType) any {
	switch prim {
	case schema.TypeDouble:
		return 3.5
	case schema.TypeFloat:
		return float32(-1.25)
	case schema.TypeInt32:
		return int32(-42)
	case schema.TypeInt64:
		return int64(-1) << 40
	case schema.TypeUint32:
		return uint32(4000000000)
	case schema.TypeUint64:
		return uint64(1) << 63
	case schema.TypeSint32:
		return int32(-2147483648)
	case schema.TypeSint64:
		return int64(-9223372036854775808)
	case schema.TypeFixed32:
		return uint32(0xdeadbeef)
	case schema.TypeFixed64:
		return uint64(0xdeadbeefcafe)
	case schema.TypeSfixed32:
		return int32(-7)
	case schema.TypeSfixed64:
		return int64(-8)
	case schema.TypeBool:
		return true
	case schema.TypeString:
		return "fourty two"
	case schema.TypeBytes:
		return []byte{0x00, 0x01, 0xfe}
	default:
		panic("unknown scalar " + prim)
	}
}

// sampleList returns a two-element slice of the Go type used for prim.
func sampleList(prim schema.PrimitiveType) any {
	switch prim {
	case schema.TypeDouble:
		return []float64{1.5, -0.0}
	case schema.TypeFloat:
		return []float32{0.1, 3.4028235e38}
	case schema.TypeInt32, schema.TypeSint32, schema.TypeSfixed32:
		return []int32{-1, 1 << 20}
	case schema.TypeInt64, schema.TypeSint64, schema.TypeSfixed64:
		return []int64{-1, 1 << 50}
	case schema.TypeUint32, schema.TypeFixed32:
		return []uint32{0, 300}
	case schema.TypeUint64, schema.TypeFixed64:
		return []uint64{0, 1 << 60}
	case schema.TypeBool:
		return []bool{true, false}
	case schema.TypeString:
		return []string{"", "dos"}
	case schema.TypeBytes:
		return [][]byte{{}, {0x02}}
	default:
		panic("unknown scalar " + prim)
	}
}
