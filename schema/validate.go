package schema

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrInvalidSchema is wrapped by every validation failure.
var ErrInvalidSchema = errors.New("schema: invalid message definition")

// Validate checks the structural rules a message definition must follow
// before it can be compiled: valid and unique field numbers, unique names,
// legal map keys and packing, and oneof members that are plain singular
// fields. Nested types are validated too.
func Validate(m *Message) error {
	if m == nil {
		return fmt.Errorf("%w: nil message", ErrInvalidSchema)
	}
	numbers := make(map[int32]string)
	names := make(map[string]struct{})

	check := func(f *Field, inOneof bool) error {
		if f == nil {
			return fmt.Errorf("%w: %s has a nil field", ErrInvalidSchema, m.DisplayName())
		}
		if !protowire.Number(f.Number).IsValid() {
			return fmt.Errorf("%w: %s.%s uses invalid field number %d", ErrInvalidSchema, m.DisplayName(), f.Name, f.Number)
		}
		if prev, dup := numbers[f.Number]; dup {
			return fmt.Errorf("%w: %s.%s reuses field number %d of %s", ErrInvalidSchema, m.DisplayName(), f.Name, f.Number, prev)
		}
		numbers[f.Number] = f.Name
		if _, dup := names[f.Name]; dup {
			return fmt.Errorf("%w: %s declares %s twice", ErrInvalidSchema, m.DisplayName(), f.Name)
		}
		names[f.Name] = struct{}{}
		return validateField(m, f, inOneof)
	}

	for _, f := range m.Fields {
		if err := check(f, false); err != nil {
			return err
		}
	}
	for _, group := range m.OneofGroups {
		if len(group.Fields) == 0 {
			return fmt.Errorf("%w: oneof %s.%s has no members", ErrInvalidSchema, m.DisplayName(), group.Name)
		}
		for _, f := range group.Fields {
			if err := check(f, true); err != nil {
				return err
			}
		}
	}
	for _, nested := range m.NestedTypes {
		if err := Validate(nested); err != nil {
			return err
		}
	}
	return nil
}

func validateField(m *Message, f *Field, inOneof bool) error {
	where := m.DisplayName() + "." + f.Name

	switch f.Type.Kind {
	case KindPrimitive:
		if !IsPrimitiveType(string(f.Type.PrimitiveType)) {
			return fmt.Errorf("%w: %s has unknown scalar type %q", ErrInvalidSchema, where, f.Type.PrimitiveType)
		}
	case KindMessage:
		if f.Type.MessageType == "" {
			return fmt.Errorf("%w: %s names no message type", ErrInvalidSchema, where)
		}
	case KindEnum:
		if f.Type.EnumType == "" {
			return fmt.Errorf("%w: %s names no enum type", ErrInvalidSchema, where)
		}
	case KindWrapper:
		if _, ok := LookupWrapper(string(f.Type.WrapperType)); !ok {
			return fmt.Errorf("%w: %s has unknown wrapper %q", ErrInvalidSchema, where, f.Type.WrapperType)
		}
	case KindMap:
		if f.Type.MapKey == nil || f.Type.MapValue == nil {
			return fmt.Errorf("%w: map %s needs key and value types", ErrInvalidSchema, where)
		}
		if !validMapKey(*f.Type.MapKey) {
			return fmt.Errorf("%w: map %s cannot use %s keys", ErrInvalidSchema, where, f.Type.MapKey.PrimitiveType)
		}
		if f.Type.MapValue.Kind == KindMap {
			return fmt.Errorf("%w: map %s cannot hold maps", ErrInvalidSchema, where)
		}
		if f.Label != LabelRepeated && f.Label != LabelSingular {
			return fmt.Errorf("%w: map %s cannot be %s", ErrInvalidSchema, where, f.Label)
		}
	default:
		return fmt.Errorf("%w: %s has unknown kind %q", ErrInvalidSchema, where, f.Type.Kind)
	}

	if f.Packed && (f.Label != LabelRepeated || !f.Type.Packable()) {
		return fmt.Errorf("%w: %s cannot be packed", ErrInvalidSchema, where)
	}
	if inOneof {
		if f.Label == LabelRepeated || f.Label == LabelRequired || f.Type.Kind == KindMap {
			return fmt.Errorf("%w: oneof member %s must be a singular field", ErrInvalidSchema, where)
		}
	}
	if f.DefaultValue != "" && (f.Label == LabelRepeated || f.Type.Kind == KindMessage || f.Type.Kind == KindMap || f.Type.Kind == KindWrapper) {
		return fmt.Errorf("%w: %s cannot declare a default", ErrInvalidSchema, where)
	}
	return nil
}

func validMapKey(t FieldType) bool {
	if t.Kind != KindPrimitive {
		return false
	}
	switch t.PrimitiveType {
	case TypeDouble, TypeFloat, TypeBytes:
		return false
	default:
		return IsPrimitiveType(string(t.PrimitiveType))
	}
}
