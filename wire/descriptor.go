package wire

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/anirudhraja/pbcodec/schema"
)

// Resolver looks up the message and enum definitions a field refers to by
// name. The registry package implements it.
type Resolver interface {
	GetMessage(name string) (*schema.Message, error)
	GetEnum(name string) (*schema.Enum, error)
}

// Descriptor is the compiled, immutable form of a message definition: one
// FieldBinding per field ordered by field number, plus lookup tables. It is
// safe for concurrent use.
type Descriptor struct {
	name     string
	schema   *schema.Message
	fields   []*FieldBinding
	byNumber map[FieldNumber]*FieldBinding
	byName   map[string]*FieldBinding
	oneofs   []string
	required []*FieldBinding
}

// Name returns the fully qualified message name when known.
func (d *Descriptor) Name() string {
	return d.name
}

// Schema returns the definition the descriptor was compiled from.
func (d *Descriptor) Schema() *schema.Message {
	return d.schema
}

// Fields returns the bindings in ascending field number order.
func (d *Descriptor) Fields() []*FieldBinding {
	return d.fields
}

// FieldByName returns the binding for name, or nil.
func (d *Descriptor) FieldByName(name string) *FieldBinding {
	return d.byName[name]
}

// FieldByNumber returns the binding for num, or nil.
func (d *Descriptor) FieldByNumber(num FieldNumber) *FieldBinding {
	return d.byNumber[num]
}

// Oneofs returns the oneof group names in declaration order.
func (d *Descriptor) Oneofs() []string {
	return d.oneofs
}

// Compiler turns schema messages into descriptors and caches the result, so
// every field referring to a message type shares one descriptor. Recursive
// types compile because a descriptor is cached before its fields are bound.
type Compiler struct {
	resolver Resolver

	mu    sync.Mutex
	cache map[*schema.Message]*Descriptor
}

// NewCompiler creates a compiler resolving type references through r. A nil
// resolver is fine for messages that only use scalar fields and wrappers.
func NewCompiler(r Resolver) *Compiler {
	return &Compiler{
		resolver: r,
		cache:    make(map[*schema.Message]*Descriptor),
	}
}

// Compile builds (or returns the cached) descriptor for msg.
func Compile(msg *schema.Message, r Resolver) (*Descriptor, error) {
	return NewCompiler(r).Compile(msg)
}

// Compile builds (or returns the cached) descriptor for msg. On failure
// nothing compiled during the call is kept.
func (c *Compiler) Compile(msg *schema.Message) (*Descriptor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pending := make(map[*schema.Message]*Descriptor)
	d, err := c.compile(msg, pending)
	if err != nil {
		if msg == nil {
			return nil, err
		}
		return nil, fmt.Errorf("failed to compile message %s: %w", msg.DisplayName(), err)
	}
	for m, pd := range pending {
		c.cache[m] = pd
	}
	return d, nil
}

// CompileByName resolves name through the resolver and compiles it.
func (c *Compiler) CompileByName(name string) (*Descriptor, error) {
	if c.resolver == nil {
		return nil, fmt.Errorf("no resolver to look up message %s", name)
	}
	msg, err := c.resolver.GetMessage(name)
	if err != nil {
		return nil, err
	}
	return c.Compile(msg)
}

func (c *Compiler) lookup(msg *schema.Message, pending map[*schema.Message]*Descriptor) (*Descriptor, bool) {
	if d, ok := c.cache[msg]; ok {
		return d, true
	}
	d, ok := pending[msg]
	return d, ok
}

func (c *Compiler) compile(msg *schema.Message, pending map[*schema.Message]*Descriptor) (*Descriptor, error) {
	if d, ok := c.lookup(msg, pending); ok {
		return d, nil
	}
	if err := schema.Validate(msg); err != nil {
		return nil, err
	}

	d := &Descriptor{
		name:     msg.DisplayName(),
		schema:   msg,
		byNumber: make(map[FieldNumber]*FieldBinding),
		byName:   make(map[string]*FieldBinding),
	}
	pending[msg] = d

	for _, f := range msg.Fields {
		b, err := c.bind(f, -1, pending)
		if err != nil {
			return nil, wrapWithField(err, f.Name)
		}
		d.fields = append(d.fields, b)
	}
	for i, group := range msg.OneofGroups {
		d.oneofs = append(d.oneofs, group.Name)
		for _, f := range group.Fields {
			b, err := c.bind(f, i, pending)
			if err != nil {
				return nil, wrapWithField(err, f.Name)
			}
			d.fields = append(d.fields, b)
		}
	}

	sort.SliceStable(d.fields, func(i, j int) bool { return d.fields[i].Number < d.fields[j].Number })
	for i, b := range d.fields {
		b.index = i
		d.byNumber[b.Number] = b
		d.byName[b.Name] = b
		if b.Label == schema.LabelRequired {
			d.required = append(d.required, b)
		}
	}
	return d, nil
}

func (c *Compiler) bind(f *schema.Field, oneof int, pending map[*schema.Message]*Descriptor) (*FieldBinding, error) {
	switch f.Type.Kind {
	case schema.KindPrimitive:
		return bindPrimitive(f, oneof)
	case schema.KindEnum:
		def, err := c.enumDefault(f)
		if err != nil {
			return nil, err
		}
		return bindKind(f, enumKind, def, false, oneof), nil
	case schema.KindMessage, schema.KindWrapper:
		nested, err := c.messageOf(f.Type)
		if err != nil {
			return nil, err
		}
		desc, err := c.compile(nested, pending)
		if err != nil {
			return nil, err
		}
		b := bindKind(f, messageKind(desc), nil, true, oneof)
		b.message = desc
		return b, nil
	case schema.KindMap:
		keyKind, _, err := c.entryKind(*f.Type.MapKey, pending)
		if err != nil {
			return nil, fmt.Errorf("map key: %w", err)
		}
		valueKind, valueDesc, err := c.entryKind(*f.Type.MapValue, pending)
		if err != nil {
			return nil, fmt.Errorf("map value: %w", err)
		}
		b := mapBinding(f, keyKind, valueKind)
		b.message = valueDesc
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported field kind %q", f.Type.Kind)
	}
}

// messageOf resolves the message definition behind a message or wrapper
// field type.
func (c *Compiler) messageOf(t schema.FieldType) (*schema.Message, error) {
	if t.Kind == schema.KindWrapper {
		m := schema.WrapperMessage(t.WrapperType)
		if m == nil {
			return nil, fmt.Errorf("unknown wrapper type %s", t.WrapperType)
		}
		return m, nil
	}
	if wt, ok := schema.LookupWrapper(strings.TrimPrefix(t.MessageType, ".")); ok {
		return schema.WrapperMessage(wt), nil
	}
	if c.resolver == nil {
		return nil, fmt.Errorf("no resolver to look up message %s", t.MessageType)
	}
	return c.resolver.GetMessage(t.MessageType)
}

// entryKind returns the kind of a map key or value, plus its descriptor when
// it is a message.
func (c *Compiler) entryKind(t schema.FieldType, pending map[*schema.Message]*Descriptor) (anyKind, *Descriptor, error) {
	switch t.Kind {
	case schema.KindPrimitive:
		k, err := primitiveAnyKind(t.PrimitiveType)
		return k, nil, err
	case schema.KindEnum:
		return erase(enumKind), nil, nil
	case schema.KindMessage, schema.KindWrapper:
		nested, err := c.messageOf(t)
		if err != nil {
			return anyKind{}, nil, err
		}
		desc, err := c.compile(nested, pending)
		if err != nil {
			return anyKind{}, nil, err
		}
		return erase(messageKind(desc)), desc, nil
	default:
		return anyKind{}, nil, fmt.Errorf("unsupported map entry kind %q", t.Kind)
	}
}

func (c *Compiler) enumDefault(f *schema.Field) (int32, error) {
	lit := f.DefaultValue
	if lit == "" {
		return 0, nil
	}
	if n, err := strconv.ParseInt(lit, 0, 32); err == nil {
		return int32(n), nil
	}
	if c.resolver == nil {
		return 0, fmt.Errorf("cannot resolve enum default %s without a resolver", lit)
	}
	enum, err := c.resolver.GetEnum(f.Type.EnumType)
	if err != nil {
		return 0, err
	}
	n, ok := enum.Lookup(lit)
	if !ok {
		return 0, fmt.Errorf("enum %s has no value %s", f.Type.EnumType, lit)
	}
	return n, nil
}

// ===== SCALARS =====

func bindPrimitive(f *schema.Field, oneof int) (*FieldBinding, error) {
	switch f.Type.PrimitiveType {
	case schema.TypeInt32:
		return bindScalar(f, int32Kind, parseInt32, oneof)
	case schema.TypeInt64:
		return bindScalar(f, int64Kind, parseInt64, oneof)
	case schema.TypeUint32:
		return bindScalar(f, uint32Kind, parseUint32, oneof)
	case schema.TypeUint64:
		return bindScalar(f, uint64Kind, parseUint64, oneof)
	case schema.TypeSint32:
		return bindScalar(f, sint32Kind, parseInt32, oneof)
	case schema.TypeSint64:
		return bindScalar(f, sint64Kind, parseInt64, oneof)
	case schema.TypeBool:
		return bindScalar(f, boolKind, strconv.ParseBool, oneof)
	case schema.TypeFixed32:
		return bindScalar(f, fixed32Kind, parseUint32, oneof)
	case schema.TypeSfixed32:
		return bindScalar(f, sfixed32Kind, parseInt32, oneof)
	case schema.TypeFloat:
		return bindScalar(f, floatKind, parseFloat32, oneof)
	case schema.TypeFixed64:
		return bindScalar(f, fixed64Kind, parseUint64, oneof)
	case schema.TypeSfixed64:
		return bindScalar(f, sfixed64Kind, parseInt64, oneof)
	case schema.TypeDouble:
		return bindScalar(f, doubleKind, parseFloat64, oneof)
	case schema.TypeString:
		return bindScalar(f, stringKind, parseString, oneof)
	case schema.TypeBytes:
		return bindScalar(f, bytesKind, parseBytes, oneof)
	default:
		return nil, fmt.Errorf("unsupported scalar type %q", f.Type.PrimitiveType)
	}
}

func bindScalar[T any](f *schema.Field, k kind[T], parse func(string) (T, error), oneof int) (*FieldBinding, error) {
	var def T
	if f.DefaultValue != "" {
		v, err := parse(f.DefaultValue)
		if err != nil {
			return nil, fmt.Errorf("invalid default %q for %s: %w", f.DefaultValue, k.name, err)
		}
		def = v
	}
	return bindKind(f, k, def, false, oneof), nil
}

func primitiveAnyKind(t schema.PrimitiveType) (anyKind, error) {
	switch t {
	case schema.TypeInt32:
		return erase(int32Kind), nil
	case schema.TypeInt64:
		return erase(int64Kind), nil
	case schema.TypeUint32:
		return erase(uint32Kind), nil
	case schema.TypeUint64:
		return erase(uint64Kind), nil
	case schema.TypeSint32:
		return erase(sint32Kind), nil
	case schema.TypeSint64:
		return erase(sint64Kind), nil
	case schema.TypeBool:
		return erase(boolKind), nil
	case schema.TypeFixed32:
		return erase(fixed32Kind), nil
	case schema.TypeSfixed32:
		return erase(sfixed32Kind), nil
	case schema.TypeFloat:
		return erase(floatKind), nil
	case schema.TypeFixed64:
		return erase(fixed64Kind), nil
	case schema.TypeSfixed64:
		return erase(sfixed64Kind), nil
	case schema.TypeDouble:
		return erase(doubleKind), nil
	case schema.TypeString:
		return erase(stringKind), nil
	case schema.TypeBytes:
		return erase(bytesKind), nil
	default:
		return anyKind{}, fmt.Errorf("unsupported scalar type %q", t)
	}
}

// Default literal parsers. Integers accept decimal, hex and octal forms;
// floats accept inf, -inf and nan.

func parseInt32(s string) (int32, error) {
	n, err := strconv.ParseInt(s, 0, 32)
	return int32(n), err
}

func parseInt64(s string) (int64, error) {
	return strconv.ParseInt(s, 0, 64)
}

func parseUint32(s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 0, 32)
	return uint32(n), err
}

func parseUint64(s string) (uint64, error) {
	return strconv.ParseUint(s, 0, 64)
}

func parseFloat32(s string) (float32, error) {
	n, err := strconv.ParseFloat(s, 32)
	return float32(n), err
}

func parseFloat64(s string) (float64, error) {
	return strconv.ParseFloat(s, 64)
}

func parseString(s string) (string, error) {
	return s, nil
}

func parseBytes(s string) ([]byte, error) {
	return []byte(s), nil
}
