package registry

import (
	"bytes"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	protoparser "github.com/yoheimuta/go-protoparser/v4"
	protoparserparser "github.com/yoheimuta/go-protoparser/v4/parser"

	"github.com/anirudhraja/pbcodec/schema"
)

// wellKnownPrefix marks imports served by the built-in definitions instead of
// files on disk.
const wellKnownPrefix = "google/protobuf/"

// getAllProtoInfo uses DFS to walk the import graph starting at the given
// import paths, parsing every file not already loaded. seeded holds files that
// were supplied in memory and must not be looked up on disk.
func (r *Registry) getAllProtoInfo(protoFiles []string, dirs []string, seeded map[string]*protoparserparser.Proto) ([]string, error) {
	visited := make(map[string]struct{}) // to make sure we don't end up in a loop
	result := make([]string, 0)

	var dfs func(protoFile string) error
	dfs = func(protoFile string) error {
		if _, ok := visited[protoFile]; ok {
			return nil
		}
		visited[protoFile] = struct{}{}
		if _, loaded := r.repo.ProtoFiles[protoFile]; loaded {
			return nil
		}

		parsedBody, ok := seeded[protoFile]
		if !ok {
			fullPath, err := findIfProtoExists(protoFile, dirs)
			if err != nil {
				return err
			}
			if parsedBody, err = parseProtoFile(protoFile, fullPath); err != nil {
				return err
			}
		}
		r.parsedProtoBody[protoFile] = parsedBody
		result = append(result, protoFile)

		for _, body := range parsedBody.ProtoBody {
			switch b := body.(type) {
			case *protoparserparser.Import: // resolve relation for each imports
				importPath := unquote(b.Location)
				if strings.HasPrefix(importPath, wellKnownPrefix) {
					r.logger.Debug().Str("file", protoFile).Str("import", importPath).Msg("using built-in definitions for import")
					continue
				}
				if err := dfs(importPath); err != nil {
					return fmt.Errorf("%s: %w", protoFile, err)
				}
			}
		}
		return nil
	}

	for _, protoFile := range protoFiles {
		if err := dfs(protoFile); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func parseProtoFile(name, fullPath string) (*protoparserparser.Proto, error) {
	protoBytes, err := os.ReadFile(fullPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return parseProtoSource(name, protoBytes)
}

func parseProtoSource(name string, content []byte) (*protoparserparser.Proto, error) {
	parsedBody, err := protoparser.Parse(bytes.NewReader(content), protoparser.WithFilename(name))
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return parsedBody, nil
}

func findIfProtoExists(protoPath string, dirs []string) (string, error) {
	var (
		fullPath      string
		fullProtoPath string
		err           error
	)
	protoPath = unquote(protoPath)
	if !strings.HasSuffix(protoPath, ".proto") {
		return "", fmt.Errorf("%s is not a .proto file", protoPath)
	}
	for _, dir := range dirs {
		fullPath = filepath.Join(dir, filepath.FromSlash(protoPath))
		// Check if the path exists
		if _, err = os.Stat(fullPath); err == nil {
			fullProtoPath = fullPath
			break
		}
	}
	if fullProtoPath == "" {
		if err == nil {
			err = os.ErrNotExist
		}
		return "", fmt.Errorf("path does not exist: %s: %w", protoPath, err)
	}
	return fullProtoPath, nil
}

// importName turns a path below root into the slash separated name other
// files use to import it.
func importName(root, file string) string {
	rel, err := filepath.Rel(root, file)
	if err != nil {
		return path.Base(filepath.ToSlash(file))
	}
	return filepath.ToSlash(rel)
}

/*
This helper function will return the entity for any referenced type ,
Be it nested, file level or imported entities. If not found will return an error
Ref - https://github.com/protocolbuffers/protobuf/blob/b7a5772caf08d62a20fd1bca258f501fa4db022c/src/google/protobuf/descriptor.proto#L186-L191
*/
func getReferencedType(typeName, prefix string, allResolvedEntities map[string]schema.TypeKind) (string, error) {
	// check if fully qualifed prefixed by dot
	if strings.HasPrefix(typeName, ".") {
		return getFullyQualifiedType(typeName, allResolvedEntities)
	}
	// try resolving from inner entities up till the parent package
	if result, ok := splitNameAndCheck(typeName, prefix, allResolvedEntities); ok {
		return result, nil
	}
	//  check if the entity is referenced to other packages via packageName
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve type name: %s", typeName)
}

// splitNameAndCheck splits the prefixName and tries to append the typeName and find the entity for resolution
// it also tries the find the entities defined using relative path
func splitNameAndCheck(typeName, prefix string, allResolvedEntities map[string]schema.TypeKind) (string, bool) {
	var (
		prefixSplit []string
		entityName  string
	)
	prefixSplit = strings.Split(prefix, ".")

	for len(prefixSplit) > 0 && prefixSplit[0] != "" {
		result := strings.Join(prefixSplit, ".")
		entityName = result + "." + typeName
		if _, ok := allResolvedEntities[entityName]; ok {
			return entityName, true
		}
		// Omit the last element in each iteration as we go level above to outer entity
		prefixSplit = prefixSplit[:len(prefixSplit)-1]
	}
	return "", false
}

func getFullyQualifiedType(typeName string, allResolvedEntities map[string]schema.TypeKind) (string, error) {
	typeName = strings.TrimPrefix(typeName, ".")
	if _, ok := allResolvedEntities[typeName]; ok {
		return typeName, nil
	}
	return "", fmt.Errorf("unable to resolve fully qualified type name: .%s", typeName)
}

// unquote strips the quotes the parser keeps around string literals.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || (s[0] != '"' && s[0] != '\'') || s[len(s)-1] != s[0] {
		return s
	}
	if s[0] == '"' {
		if u, err := strconv.Unquote(s); err == nil {
			return u
		}
	}
	return s[1 : len(s)-1]
}
