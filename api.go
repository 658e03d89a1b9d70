package pbcodec

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/anirudhraja/pbcodec/registry"
	"github.com/anirudhraja/pbcodec/schema"
	"github.com/anirudhraja/pbcodec/wire"
)

// ===== SCHEMA-AWARE API =====

// Config configures a Codec.
type Config struct {
	// ProtoPaths are searched, in order, for .proto files and their imports.
	ProtoPaths []string
	// Decode is applied to every Parse and Merge.
	Decode wire.DecodeOptions
	// Logger receives registry diagnostics, and decode trace events unless
	// Decode.Logger is set. Nil disables logging.
	Logger *zerolog.Logger
}

// Codec provides schema-aware protobuf operations without generated code.
// It is safe for concurrent use once its schemas are loaded.
type Codec struct {
	registry *registry.Registry
	compiler *wire.Compiler
	opts     wire.DecodeOptions
}

// New creates a Codec with default options.
func New() *Codec {
	return NewWithConfig(Config{})
}

// NewWithConfig creates a Codec from cfg.
func NewWithConfig(cfg Config) *Codec {
	reg := registry.NewRegistry(cfg.ProtoPaths...)
	opts := cfg.Decode
	if cfg.Logger != nil {
		reg.SetLogger(*cfg.Logger)
		if opts.Logger == nil {
			opts.Logger = cfg.Logger
		}
	}
	return &Codec{
		registry: reg,
		compiler: wire.NewCompiler(reg),
		opts:     opts,
	}
}

// LoadSchema loads a .proto file or every .proto file below a directory.
func (c *Codec) LoadSchema(path string) error {
	return c.registry.LoadSchema(path)
}

// LoadFile loads a .proto file by import path from the configured proto paths.
func (c *Codec) LoadFile(name string) error {
	return c.registry.LoadFile(name)
}

// LoadSource loads .proto content held in memory.
func (c *Codec) LoadSource(name, content string) error {
	return c.registry.LoadSource(name, content)
}

// LoadRepo loads a protobuf repository built in code.
func (c *Codec) LoadRepo(repo *schema.ProtoRepo) error {
	return c.registry.LoadRepo(repo)
}

// Descriptor returns the compiled descriptor for messageType.
func (c *Codec) Descriptor(messageType string) (*wire.Descriptor, error) {
	desc, err := c.compiler.CompileByName(messageType)
	if err != nil {
		return nil, fmt.Errorf("message type %s: %w", messageType, err)
	}
	return desc, nil
}

// NewMessage returns an empty message of messageType.
func (c *Codec) NewMessage(messageType string) (*wire.Message, error) {
	desc, err := c.Descriptor(messageType)
	if err != nil {
		return nil, err
	}
	return desc.New(), nil
}

// Parse decodes protobuf bytes as a messageType.
func (c *Codec) Parse(data []byte, messageType string) (*wire.Message, error) {
	desc, err := c.Descriptor(messageType)
	if err != nil {
		return nil, err
	}
	return c.opts.Unmarshal(data, desc)
}

// Merge folds protobuf bytes into m.
func (c *Codec) Merge(m *wire.Message, data []byte) error {
	return c.opts.Merge(m, data)
}

// Marshal encodes field values given by name as a messageType. Values use
// the Go types accepted by wire.Message.Set.
func (c *Codec) Marshal(values map[string]any, messageType string) ([]byte, error) {
	m, err := c.NewMessage(messageType)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := m.Set(name, values[name]); err != nil {
			return nil, err
		}
	}
	return m.Marshal(), nil
}

// ===== REGISTRY ACCESS =====

func (c *Codec) Registry() *registry.Registry { return c.registry }
func (c *Codec) ListMessages() []string       { return c.registry.ListMessages() }
func (c *Codec) ListEnums() []string          { return c.registry.ListEnums() }
