package registry

import (
	"github.com/anirudhraja/pbcodec/schema"
)

// Well-known types from google/protobuf that are available without their
// .proto files. The wrappers are served by schema.WrapperMessage.
var (
	builtinMessages = map[string]*schema.Message{}
	builtinEnums    = map[string]*schema.Enum{}
)

func init() {
	scalar := func(name string, number int32, prim schema.PrimitiveType) *schema.Field {
		return &schema.Field{
			Name:   name,
			Number: number,
			Type:   schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: prim},
		}
	}
	ref := func(name string, number int32, kind schema.TypeKind, typeName string) *schema.Field {
		f := &schema.Field{Name: name, Number: number, Type: schema.FieldType{Kind: kind}}
		if kind == schema.KindEnum {
			f.Type.EnumType = typeName
		} else {
			f.Type.MessageType = typeName
		}
		return f
	}
	message := func(name string, fields ...*schema.Field) *schema.Message {
		m := &schema.Message{Name: name, FullName: "google.protobuf." + name, Fields: fields}
		builtinMessages[m.FullName] = m
		return m
	}

	secondsNanos := func() []*schema.Field {
		return []*schema.Field{scalar("seconds", 1, schema.TypeInt64), scalar("nanos", 2, schema.TypeInt32)}
	}
	message("Timestamp", secondsNanos()...)
	message("Duration", secondsNanos()...)
	message("Empty")
	paths := scalar("paths", 1, schema.TypeString)
	paths.Label = schema.LabelRepeated
	message("FieldMask", paths)
	message("Any", scalar("type_url", 1, schema.TypeString), scalar("value", 2, schema.TypeBytes))

	nullValue := &schema.Enum{
		Name:     "NullValue",
		FullName: "google.protobuf.NullValue",
		Values:   []*schema.EnumValue{{Name: "NULL_VALUE", Number: 0}},
	}
	builtinEnums[nullValue.FullName] = nullValue

	key := schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.TypeString}
	value := schema.FieldType{Kind: schema.KindMessage, MessageType: "google.protobuf.Value"}
	message("Struct", &schema.Field{
		Name:   "fields",
		Number: 1,
		Label:  schema.LabelRepeated,
		Type:   schema.FieldType{Kind: schema.KindMap, MapKey: &key, MapValue: &value},
	})
	values := ref("values", 1, schema.KindMessage, "google.protobuf.Value")
	values.Label = schema.LabelRepeated
	message("ListValue", values)
	v := message("Value")
	v.OneofGroups = []*schema.Oneof{{
		Name: "kind",
		Fields: []*schema.Field{
			ref("null_value", 1, schema.KindEnum, nullValue.FullName),
			scalar("number_value", 2, schema.TypeDouble),
			scalar("string_value", 3, schema.TypeString),
			scalar("bool_value", 4, schema.TypeBool),
			ref("struct_value", 5, schema.KindMessage, "google.protobuf.Struct"),
			ref("list_value", 6, schema.KindMessage, "google.protobuf.ListValue"),
		},
	}}
}
