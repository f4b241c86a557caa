package preview

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/conneroisu/pantry/internal/helpers"
	"gopkg.in/yaml.v3"
)

// LoadModel decodes a model file, choosing the format by extension: .json,
// .yaml, .yml, .toml or .lua. A Lua model is a file returning a table.
func LoadModel(path string) (interface{}, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".lua" {
		return helpers.DecodeFile(path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var model interface{}
	switch ext {
	case ".json":
		err = json.Unmarshal(data, &model)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &model)
	case ".toml":
		var table map[string]interface{}
		err = toml.Unmarshal(data, &table)
		model = table
	default:
		return nil, fmt.Errorf("unsupported model format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return model, nil
}

// LoadDefaultModel loads a model file that must decode to a mapping.
func LoadDefaultModel(path string) (map[string]interface{}, error) {
	model, err := LoadModel(path)
	if err != nil {
		return nil, err
	}
	m, ok := model.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("default model %s must be a mapping", path)
	}
	return m, nil
}
