package schema

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/semfuse/errors"
)

// Registry holds every declared source and provides entity lookup by label.
// It is explicitly constructed, validated once, and immutable afterwards, so
// it is safe for concurrent readers.
type Registry struct {
	sources []SourceDecl
	byLabel map[string]Entity
	ordered []string // entity labels in declaration order
}

// NewRegistry validates the given sources and builds the label index.
// Duplicate entity labels across sources are a hard configuration error:
// silent last-write-wins would make graph rebuilds depend on source order.
func NewRegistry(sources ...SourceDecl) (*Registry, error) {
	r := &Registry{
		sources: sources,
		byLabel: make(map[string]Entity),
	}

	for _, src := range sources {
		if err := src.Validate(); err != nil {
			return nil, wrapInvalid(
				fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
				"NewRegistry", "validate source")
		}

		for _, decl := range src.Entities {
			if existing, ok := r.byLabel[decl.Label]; ok {
				return nil, wrapInvalid(
					fmt.Errorf("%w: %q declared by both %q and %q",
						errors.ErrDuplicateEntity, decl.Label, existing.Source, src.Name),
					"NewRegistry", "index entities")
			}
			r.byLabel[decl.Label] = Entity{
				EntityDecl: decl,
				Source:     src.Name,
				SourceType: src.Type,
			}
			r.ordered = append(r.ordered, decl.Label)
		}
	}

	return r, nil
}

// Entity returns the declaration for the given label.
func (r *Registry) Entity(label string) (Entity, error) {
	e, ok := r.byLabel[label]
	if !ok {
		return Entity{}, fmt.Errorf("%w: %q", errors.ErrSchemaNotFound, label)
	}
	return e, nil
}

// Has reports whether an entity with the given label is declared.
func (r *Registry) Has(label string) bool {
	_, ok := r.byLabel[label]
	return ok
}

// Entities returns every declared entity in declaration order.
func (r *Registry) Entities() []Entity {
	out := make([]Entity, 0, len(r.ordered))
	for _, label := range r.ordered {
		out = append(out, r.byLabel[label])
	}
	return out
}

// Sources returns the source declarations in construction order.
func (r *Registry) Sources() []SourceDecl {
	return r.sources
}

// Len returns the number of declared entities.
func (r *Registry) Len() int {
	return len(r.byLabel)
}

// schemaFile is the YAML document shape: a list of sources.
type schemaFile struct {
	Sources []SourceDecl `yaml:"sources"`
}

// LoadFile parses one YAML schema document into its source declarations.
func LoadFile(path string) ([]SourceDecl, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Registry", "LoadFile", "read schema file")
	}

	var doc schemaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s: %w", errors.ErrParsingFailed, path, err),
			"Registry", "LoadFile", "parse schema file")
	}
	if len(doc.Sources) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s declares no sources", errors.ErrInvalidConfig, path),
			"Registry", "LoadFile", "parse schema file")
	}

	return doc.Sources, nil
}

// LoadPaths builds a Registry from schema files and directories. Directories
// are scanned non-recursively for .yaml/.yml files, sorted by name so the
// resulting registry is deterministic.
func LoadPaths(paths ...string) (*Registry, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Registry", "LoadPaths", "stat schema path")
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Registry", "LoadPaths", "read schema directory")
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := strings.ToLower(filepath.Ext(entry.Name()))
			if ext == ".yaml" || ext == ".yml" {
				found = append(found, filepath.Join(p, entry.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}

	if len(files) == 0 {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: no schema files found", errors.ErrMissingConfig),
			"Registry", "LoadPaths", "collect schema files")
	}

	var sources []SourceDecl
	for _, f := range files {
		loaded, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		sources = append(sources, loaded...)
	}

	return NewRegistry(sources...)
}
