package registry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/pbcodec/schema"
)

const (
	syntaxProto2 = "proto2"
	syntaxProto3 = "proto3"
)

// typeRef is a field type naming a message or enum that can only be resolved
// once every file of the batch has registered its names.
type typeRef struct {
	field  *schema.Field
	typ    *schema.FieldType // field.Type or the map value type
	name   string
	scope  string // full name of the enclosing message
	packed *bool  // explicit [packed = ...] option
	proto3 bool
}

// converter turns one parsed file into schema definitions.
type converter struct {
	file   *schema.ProtoFile
	proto3 bool
	refs   []*typeRef
	logger zerolog.Logger
}

func convertFile(name string, parsed *protoparserparser.Proto, logger zerolog.Logger) (*schema.ProtoFile, []*typeRef, error) {
	c := &converter{
		file: &schema.ProtoFile{
			Name:     name,
			Syntax:   syntaxProto2, // a file without a syntax statement is proto2
			Imports:  []*schema.Import{},
			Messages: []*schema.Message{},
			Enums:    []*schema.Enum{},
		},
		logger: logger,
	}
	if parsed.Syntax != nil {
		switch version := unquote(parsed.Syntax.ProtobufVersion); version {
		case syntaxProto2, syntaxProto3:
			c.file.Syntax = version
		default:
			return nil, nil, fmt.Errorf("%s: unsupported syntax %q", name, version)
		}
	}
	c.proto3 = c.file.Syntax == syntaxProto3

	// The package statement may follow other declarations.
	for _, body := range parsed.ProtoBody {
		if p, ok := body.(*protoparserparser.Package); ok {
			c.file.Package = p.Name
		}
	}

	for _, body := range parsed.ProtoBody {
		switch b := body.(type) {
		case *protoparserparser.Import:
			c.file.Imports = append(c.file.Imports, &schema.Import{
				Path:   unquote(b.Location),
				Public: b.Modifier == protoparserparser.ImportModifierPublic,
				Weak:   b.Modifier == protoparserparser.ImportModifierWeak,
			})
		case *protoparserparser.Message:
			msg, err := c.message(b, c.file.Package)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", name, err)
			}
			c.file.Messages = append(c.file.Messages, msg)
		case *protoparserparser.Enum:
			enum, err := c.enum(b, c.file.Package)
			if err != nil {
				return nil, nil, fmt.Errorf("%s: %w", name, err)
			}
			c.file.Enums = append(c.file.Enums, enum)
		case *protoparserparser.Service:
			c.logger.Debug().Str("file", name).Str("service", b.ServiceName).Msg("ignoring service definition")
		}
	}
	return c.file, c.refs, nil
}

func (c *converter) message(m *protoparserparser.Message, scope string) (*schema.Message, error) {
	full := qualify(scope, m.MessageName)
	msg := &schema.Message{
		Name:        m.MessageName,
		FullName:    full,
		Fields:      []*schema.Field{},
		NestedTypes: []*schema.Message{},
		NestedEnums: []*schema.Enum{},
		OneofGroups: []*schema.Oneof{},
	}

	for _, body := range m.MessageBody {
		switch b := body.(type) {
		case *protoparserparser.Field:
			label, err := c.label(b)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", full, b.FieldName, err)
			}
			f, err := c.field(b.FieldName, b.FieldNumber, b.Type, label, b.FieldOptions, full)
			if err != nil {
				return nil, err
			}
			msg.Fields = append(msg.Fields, f)
		case *protoparserparser.MapField:
			f, err := c.mapField(b, full)
			if err != nil {
				return nil, err
			}
			msg.Fields = append(msg.Fields, f)
		case *protoparserparser.Oneof:
			group := &schema.Oneof{Name: b.OneofName}
			for _, of := range b.OneofFields {
				f, err := c.field(of.FieldName, of.FieldNumber, of.Type, schema.LabelSingular, of.FieldOptions, full)
				if err != nil {
					return nil, err
				}
				group.Fields = append(group.Fields, f)
			}
			msg.OneofGroups = append(msg.OneofGroups, group)
		case *protoparserparser.Message:
			nested, err := c.message(b, full)
			if err != nil {
				return nil, err
			}
			msg.NestedTypes = append(msg.NestedTypes, nested)
		case *protoparserparser.Enum:
			nested, err := c.enum(b, full)
			if err != nil {
				return nil, err
			}
			msg.NestedEnums = append(msg.NestedEnums, nested)
		case *protoparserparser.GroupField:
			// Occurrences still decode: unknown groups are skipped on the wire.
			c.logger.Warn().Str("message", full).Str("group", b.GroupName).Msg("group fields are not supported, ignoring")
		}
	}
	return msg, nil
}

func (c *converter) label(f *protoparserparser.Field) (schema.FieldLabel, error) {
	switch {
	case f.IsRepeated:
		return schema.LabelRepeated, nil
	case f.IsRequired:
		if c.proto3 {
			return "", fmt.Errorf("required fields are not allowed in proto3")
		}
		return schema.LabelRequired, nil
	case f.IsOptional:
		return schema.LabelOptional, nil
	case c.proto3:
		return schema.LabelSingular, nil
	default:
		return schema.LabelOptional, nil
	}
}

func (c *converter) field(name, number, typeName string, label schema.FieldLabel, options []*protoparserparser.FieldOption, scope string) (*schema.Field, error) {
	num, err := parseNumber(number)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: invalid field number %q: %w", scope, name, number, err)
	}
	f := &schema.Field{Name: name, Number: num, Label: label}

	var packed *bool
	for _, opt := range options {
		switch opt.OptionName {
		case "default":
			f.DefaultValue = unquote(opt.Constant)
		case "packed":
			v, err := strconv.ParseBool(opt.Constant)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: invalid packed option %q", scope, name, opt.Constant)
			}
			packed = &v
		}
	}

	if c.scalarOrWrapper(&f.Type, typeName) {
		if label == schema.LabelRepeated && f.Type.Packable() {
			f.Packed = packedDefault(packed, c.proto3)
		} else if packed != nil {
			f.Packed = *packed
		}
		return f, nil
	}
	c.refs = append(c.refs, &typeRef{
		field:  f,
		typ:    &f.Type,
		name:   typeName,
		scope:  scope,
		packed: packed,
		proto3: c.proto3,
	})
	return f, nil
}

func (c *converter) mapField(m *protoparserparser.MapField, scope string) (*schema.Field, error) {
	num, err := parseNumber(m.FieldNumber)
	if err != nil {
		return nil, fmt.Errorf("%s.%s: invalid field number %q: %w", scope, m.MapName, m.FieldNumber, err)
	}
	if !schema.IsPrimitiveType(m.KeyType) {
		return nil, fmt.Errorf("%s.%s: map key must be a scalar type, got %s", scope, m.MapName, m.KeyType)
	}
	key := schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.PrimitiveType(m.KeyType)}
	value := &schema.FieldType{}
	f := &schema.Field{
		Name:   m.MapName,
		Number: num,
		Label:  schema.LabelRepeated,
		Type:   schema.FieldType{Kind: schema.KindMap, MapKey: &key, MapValue: value},
	}
	if !c.scalarOrWrapper(value, m.Type) {
		c.refs = append(c.refs, &typeRef{field: f, typ: value, name: m.Type, scope: scope, proto3: c.proto3})
	}
	return f, nil
}

// scalarOrWrapper fills t when typeName needs no lookup.
func (c *converter) scalarOrWrapper(t *schema.FieldType, typeName string) bool {
	if schema.IsPrimitiveType(typeName) {
		*t = schema.FieldType{Kind: schema.KindPrimitive, PrimitiveType: schema.PrimitiveType(typeName)}
		return true
	}
	if wt, ok := schema.LookupWrapper(strings.TrimPrefix(typeName, ".")); ok {
		*t = schema.FieldType{Kind: schema.KindWrapper, WrapperType: wt}
		return true
	}
	return false
}

func (c *converter) enum(e *protoparserparser.Enum, scope string) (*schema.Enum, error) {
	full := qualify(scope, e.EnumName)
	enum := &schema.Enum{Name: e.EnumName, FullName: full, Values: []*schema.EnumValue{}}
	for _, body := range e.EnumBody {
		switch b := body.(type) {
		case *protoparserparser.EnumField:
			num, err := parseNumber(b.Number)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: invalid enum number %q: %w", full, b.Ident, b.Number, err)
			}
			enum.Values = append(enum.Values, &schema.EnumValue{Name: b.Ident, Number: num})
		case *protoparserparser.Option:
			if b.OptionName == "allow_alias" {
				enum.AllowAlias = b.Constant == "true"
			}
		}
	}
	if len(enum.Values) == 0 {
		return nil, fmt.Errorf("enum %s has no values", full)
	}
	if c.proto3 && enum.Values[0].Number != 0 {
		return nil, fmt.Errorf("enum %s: the first value must be zero in proto3", full)
	}
	return enum, nil
}

func packedDefault(explicit *bool, proto3 bool) bool {
	if explicit != nil {
		return *explicit
	}
	return proto3
}

func parseNumber(s string) (int32, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return 0, err
	}
	return int32(n), nil
}

func qualify(scope, name string) string {
	if scope == "" {
		return name
	}
	return scope + "." + name
}
