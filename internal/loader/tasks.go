package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"flowrun/internal"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

// ParseFunc turns the bytes of one definition file into a raw definition.
type ParseFunc func(data []byte) (RawDefinition, error)

var formats = map[string]ParseFunc{
	".yaml": parseYAML,
	".yml":  parseYAML,
	".json": parseJSON,
}

// lookup preference when several files share a base name
var extensionOrder = []string{".yaml", ".yml", ".json"}

// Extensions returns the supported definition file extensions in lookup order.
func Extensions() []string {
	return slices.Clone(extensionOrder)
}

// Supported reports whether path has a definition file extension.
func Supported(path string) bool {
	_, ok := formats[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Parse builds a canonical definition from file contents, picking the factory by extension.
func Parse(path string, data []byte) (*internal.TaskDefinition, error) {
	parse, ok := formats[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, internal.NewMalformed(path, "unsupported file type %q", filepath.Ext(path))
	}
	raw, err := parse(data)
	if err != nil {
		return nil, internal.NewMalformed(path, "%v", err)
	}
	raw.Source = path
	return Normalize(raw)
}

// LoadTask reads and normalizes the definition file at path.
func LoadTask(fsys afero.Fs, path string) (*internal.ResolvedDefinition, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	data, err := afero.ReadFile(fsys, abs)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", abs, err)
	}
	def, err := Parse(abs, data)
	if err != nil {
		return nil, err
	}
	return &internal.ResolvedDefinition{
		Definition: def,
		Path:       abs,
		Dir:        filepath.Dir(abs),
	}, nil
}

func parseYAML(data []byte) (RawDefinition, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return RawDefinition{}, err
	}
	if len(doc.Content) == 0 {
		return RawDefinition{}, nil
	}
	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return RawDefinition{}, fmt.Errorf("top level must be a mapping")
	}
	var fields map[string]any
	if err := root.Decode(&fields); err != nil {
		return RawDefinition{}, err
	}
	return RawDefinition{Fields: fields, ParamOrder: mappingKeys(root, "params")}, nil
}

// mappingKeys returns the keys of the mapping stored under key, in document order.
func mappingKeys(node *yaml.Node, key string) []string {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value != key {
			continue
		}
		val := node.Content[i+1]
		if val.Kind != yaml.MappingNode {
			return nil
		}
		keys := make([]string, 0, len(val.Content)/2)
		for j := 0; j+1 < len(val.Content); j += 2 {
			keys = append(keys, val.Content[j].Value)
		}
		return keys
	}
	return nil
}

func parseJSON(data []byte) (RawDefinition, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return RawDefinition{}, nil
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return RawDefinition{}, err
	}
	return RawDefinition{Fields: fields}, nil
}
