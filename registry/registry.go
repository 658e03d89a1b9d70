package registry

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/pbcodec/schema"
)

// Registry allows us to store the schema of the protobuf messages. We look
// this up when we need to compile, parse or marshal a message. It satisfies
// wire.Resolver and is safe for concurrent use.
type Registry struct {
	// ProtoDirectories are searched, in order, for imported files.
	ProtoDirectories []string

	mu              sync.RWMutex
	logger          zerolog.Logger
	repo            *schema.ProtoRepo
	messages        map[string]*schema.Message // fully qualified name -> message
	enums           map[string]*schema.Enum    // fully qualified name -> enum
	parsedProtoBody map[string]*protoparserparser.Proto
}

// NewRegistry creates an empty registry resolving imports against protoDirs.
func NewRegistry(protoDirs ...string) *Registry {
	return &Registry{
		ProtoDirectories: protoDirs,
		logger:           zerolog.Nop(),
		repo:             &schema.ProtoRepo{ProtoFiles: make(map[string]*schema.ProtoFile)},
		messages:         make(map[string]*schema.Message),
		enums:            make(map[string]*schema.Enum),
		parsedProtoBody:  make(map[string]*protoparserparser.Proto),
	}
}

// SetLogger routes load diagnostics to logger.
func (r *Registry) SetLogger(logger zerolog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logger = logger
}

// LoadSchema loads a single .proto file, or recursively every .proto file
// below a directory. Imports are looked up next to the loaded files first and
// then in ProtoDirectories.
func (r *Registry) LoadSchema(protoPath string) error {
	// Check if the path exists
	info, err := os.Stat(protoPath)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	// If it's a single file, process it directly
	if !info.IsDir() {
		if !strings.HasSuffix(protoPath, ".proto") {
			return fmt.Errorf("file %s is not a .proto file", protoPath)
		}
		root := filepath.Dir(protoPath)
		if err := r.loadFiles([]string{filepath.Base(protoPath)}, root); err != nil {
			return fmt.Errorf("failed to load proto file: %w", err)
		}
		return nil
	}

	// If it's a directory, walk through it recursively
	var names []string
	err = filepath.WalkDir(protoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		// Skip directories and non-proto files
		if d.IsDir() || !strings.HasSuffix(path, ".proto") {
			return nil
		}
		names = append(names, importName(protoPath, path))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to walk directory: %w", err)
	}
	if err := r.loadFiles(names, protoPath); err != nil {
		return fmt.Errorf("failed to load proto files: %w", err)
	}
	return nil
}

// LoadFile loads the file with the given import path, as found in
// ProtoDirectories, together with everything it imports.
func (r *Registry) LoadFile(name string) error {
	if err := r.loadFiles([]string{filepath.ToSlash(name)}); err != nil {
		return fmt.Errorf("failed to load proto file %s: %w", name, err)
	}
	return nil
}

// LoadSource loads .proto content held in memory under the import path name.
// Its imports are looked up in ProtoDirectories.
func (r *Registry) LoadSource(name, content string) error {
	parsed, err := parseProtoSource(name, []byte(content))
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, loaded := r.repo.ProtoFiles[name]; loaded {
		return fmt.Errorf("file %s is already loaded", name)
	}
	return r.load([]string{name}, r.ProtoDirectories, map[string]*protoparserparser.Proto{name: parsed})
}

// LoadRepo registers definitions built in code. Files already loaded under the
// same name are skipped. Type names are resolved the way .proto files resolve
// them, relative to the enclosing message and package.
func (r *Registry) LoadRepo(repo *schema.ProtoRepo) error {
	if repo == nil {
		return fmt.Errorf("nil proto repo")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	var files []*schema.ProtoFile
	var refs []*typeRef
	for _, name := range sortedKeys(repo.ProtoFiles) {
		if _, loaded := r.repo.ProtoFiles[name]; loaded {
			continue
		}
		file := repo.ProtoFiles[name]
		if file.Name == "" {
			file.Name = name
		}
		refs = append(refs, collectRefs(file)...)
		files = append(files, file)
	}
	return r.commit(files, refs)
}

func (r *Registry) loadFiles(names []string, extraDirs ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load(names, append(extraDirs, r.ProtoDirectories...), nil)
}

// load parses the import closure of names and registers it as one unit:
// nothing is registered if any file fails.
func (r *Registry) load(names []string, dirs []string, seeded map[string]*protoparserparser.Proto) error {
	paths, err := r.getAllProtoInfo(names, dirs, seeded)
	if err != nil {
		return err
	}
	defer func() {
		for _, p := range paths {
			delete(r.parsedProtoBody, p)
		}
	}()

	files := make([]*schema.ProtoFile, 0, len(paths))
	var refs []*typeRef
	for _, p := range paths {
		file, fileRefs, err := convertFile(p, r.parsedProtoBody[p], r.logger)
		if err != nil {
			return err
		}
		files = append(files, file)
		refs = append(refs, fileRefs...)
	}
	return r.commit(files, refs)
}

// commit registers names, resolves references and validates the messages of
// files, then publishes them.
func (r *Registry) commit(files []*schema.ProtoFile, refs []*typeRef) error {
	messages := make(map[string]*schema.Message)
	enums := make(map[string]*schema.Enum)
	for _, file := range files {
		if err := r.registerNames(file, messages, enums); err != nil {
			return err
		}
	}

	known := make(map[string]schema.TypeKind, len(r.messages)+len(messages)+len(builtinMessages))
	for _, set := range []map[string]*schema.Message{builtinMessages, r.messages, messages} {
		for name := range set {
			known[name] = schema.KindMessage
		}
	}
	for _, set := range []map[string]*schema.Enum{builtinEnums, r.enums, enums} {
		for name := range set {
			known[name] = schema.KindEnum
		}
	}
	if err := resolveRefs(refs, known); err != nil {
		return err
	}

	for _, name := range sortedKeys(messages) {
		if err := schema.Validate(messages[name]); err != nil {
			return err
		}
	}

	for _, file := range files {
		r.repo.ProtoFiles[file.Name] = file
		r.logger.Debug().
			Str("file", file.Name).
			Str("package", file.Package).
			Str("syntax", file.Syntax).
			Int("messages", len(file.Messages)).
			Int("enums", len(file.Enums)).
			Msg("loaded proto file")
	}
	for name, m := range messages {
		r.messages[name] = m
	}
	for name, e := range enums {
		r.enums[name] = e
	}
	return nil
}

// registerNames registers all message and enum names of protoFile
func (r *Registry) registerNames(protoFile *schema.ProtoFile, messages map[string]*schema.Message, enums map[string]*schema.Enum) error {
	pkg := protoFile.Package
	for _, msg := range protoFile.Messages {
		if err := r.registerMessage(pkg, msg, messages, enums); err != nil {
			return fmt.Errorf("%s: %w", protoFile.Name, err)
		}
	}
	for _, enum := range protoFile.Enums {
		if err := r.registerEnum(pkg, enum, messages, enums); err != nil {
			return fmt.Errorf("%s: %w", protoFile.Name, err)
		}
	}
	return nil
}

// registerMessage registers msg and its nested message and enum names
func (r *Registry) registerMessage(scope string, msg *schema.Message, messages map[string]*schema.Message, enums map[string]*schema.Enum) error {
	fullName := qualify(scope, msg.Name)
	if err := r.checkFree(fullName, messages, enums); err != nil {
		return err
	}
	msg.FullName = fullName
	messages[fullName] = msg

	for _, nestedMsg := range msg.NestedTypes {
		if err := r.registerMessage(fullName, nestedMsg, messages, enums); err != nil {
			return err
		}
	}
	for _, nestedEnum := range msg.NestedEnums {
		if err := r.registerEnum(fullName, nestedEnum, messages, enums); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) registerEnum(scope string, enum *schema.Enum, messages map[string]*schema.Message, enums map[string]*schema.Enum) error {
	fullName := qualify(scope, enum.Name)
	if err := r.checkFree(fullName, messages, enums); err != nil {
		return err
	}
	enum.FullName = fullName
	enums[fullName] = enum
	return nil
}

func (r *Registry) checkFree(fullName string, messages map[string]*schema.Message, enums map[string]*schema.Enum) error {
	_, m1 := r.messages[fullName]
	_, m2 := messages[fullName]
	_, e1 := r.enums[fullName]
	_, e2 := enums[fullName]
	_, b1 := builtinMessages[fullName]
	_, b2 := builtinEnums[fullName]
	if m1 || m2 || e1 || e2 || b1 || b2 {
		return fmt.Errorf("duplicate symbol %s", fullName)
	}
	return nil
}

// resolveRefs rewrites every pending reference to a fully qualified message
// or enum type and settles packing of repeated enum fields.
func resolveRefs(refs []*typeRef, known map[string]schema.TypeKind) error {
	for _, ref := range refs {
		fullName, err := getReferencedType(ref.name, ref.scope, known)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", ref.scope, ref.field.Name, err)
		}
		switch known[fullName] {
		case schema.KindEnum:
			*ref.typ = schema.FieldType{Kind: schema.KindEnum, EnumType: fullName}
			if ref.typ == &ref.field.Type && ref.field.Label == schema.LabelRepeated {
				ref.field.Packed = packedDefault(ref.packed, ref.proto3)
			} else if ref.packed != nil {
				ref.field.Packed = *ref.packed
			}
		default:
			*ref.typ = schema.FieldType{Kind: schema.KindMessage, MessageType: fullName}
			if ref.packed != nil {
				ref.field.Packed = *ref.packed
			}
		}
	}
	return nil
}

// collectRefs gathers the message and enum references of a file built in code.
// Packing stays as declared.
func collectRefs(file *schema.ProtoFile) []*typeRef {
	var refs []*typeRef
	var walk func(scope string, m *schema.Message)
	add := func(scope string, f *schema.Field, t *schema.FieldType) {
		name := t.MessageType
		if t.Kind == schema.KindEnum {
			name = t.EnumType
		}
		if name == "" || (t.Kind != schema.KindMessage && t.Kind != schema.KindEnum) {
			return
		}
		if wt, ok := schema.LookupWrapper(strings.TrimPrefix(name, ".")); ok {
			*t = schema.FieldType{Kind: schema.KindWrapper, WrapperType: wt}
			return
		}
		packed := f.Packed
		refs = append(refs, &typeRef{field: f, typ: t, name: name, scope: scope, packed: &packed})
	}
	walk = func(scope string, m *schema.Message) {
		full := qualify(scope, m.Name)
		for _, f := range m.AllFields() {
			if f.Type.Kind == schema.KindMap && f.Type.MapValue != nil {
				add(full, f, f.Type.MapValue)
				continue
			}
			add(full, f, &f.Type)
		}
		for _, nested := range m.NestedTypes {
			walk(full, nested)
		}
	}
	for _, m := range file.Messages {
		walk(file.Package, m)
	}
	return refs
}

// GetMessage retrieves a message definition by name. A fully qualified name,
// optionally with a leading dot, is looked up first; otherwise the name must
// be a unique suffix of a registered name.
func (r *Registry) GetMessage(name string) (*schema.Message, error) {
	name = strings.TrimPrefix(name, ".")
	if wt, ok := schema.LookupWrapper(name); ok {
		return schema.WrapperMessage(wt), nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if msg, exists := r.messages[name]; exists {
		return msg, nil
	}
	if msg, exists := builtinMessages[name]; exists {
		return msg, nil
	}
	fullName, err := lookupSuffix(name, r.messages)
	if err != nil {
		return nil, fmt.Errorf("message %w", err)
	}
	return r.messages[fullName], nil
}

// GetEnum retrieves an enum definition by name, like GetMessage.
func (r *Registry) GetEnum(name string) (*schema.Enum, error) {
	name = strings.TrimPrefix(name, ".")

	r.mu.RLock()
	defer r.mu.RUnlock()
	if enum, exists := r.enums[name]; exists {
		return enum, nil
	}
	if enum, exists := builtinEnums[name]; exists {
		return enum, nil
	}
	fullName, err := lookupSuffix(name, r.enums)
	if err != nil {
		return nil, fmt.Errorf("enum %w", err)
	}
	return r.enums[fullName], nil
}

func lookupSuffix[V any](name string, set map[string]V) (string, error) {
	var matches []string
	for fullName := range set {
		if strings.HasSuffix(fullName, "."+name) {
			matches = append(matches, fullName)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("not found: %s", name)
	case 1:
		return matches[0], nil
	default:
		sort.Strings(matches)
		return "", fmt.Errorf("%s is ambiguous: %s", name, strings.Join(matches, ", "))
	}
}

// ListMessages returns all registered message names, sorted.
func (r *Registry) ListMessages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.messages)
}

// ListEnums returns all registered enum names, sorted.
func (r *Registry) ListEnums() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.enums)
}

// Files returns the names of the loaded files, sorted.
func (r *Registry) Files() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.repo.ProtoFiles)
}

// File returns a loaded file by name.
func (r *Registry) File(name string) (*schema.ProtoFile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.repo.ProtoFiles[name]
	return f, ok
}

func sortedKeys[V any](set map[string]V) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
