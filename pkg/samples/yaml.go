package samples

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAMLStore читает samples из YAML вида:
//
//	samples:
//	  get_node_details:
//	    id: abc
//	  get_channels: []
//
// Ключ верхнего уровня - suite, вложенный - operation. Явный `~` - найденный null.
// Нестроковые ключи внутри sample (`1: a`) превращаются в строки, как в JSON.
// Только чтение: YAML правят руками, перезапись потеряла бы комментарии.
type YAMLStore struct {
	path string
}

var _ Store = (*YAMLStore)(nil)

// NewYAMLStore создает хранилище поверх файла path.
func NewYAMLStore(path string) *YAMLStore {
	return &YAMLStore{path: path}
}

func (s *YAMLStore) Location() string {
	return s.path
}

func (s *YAMLStore) Lookup(ctx context.Context, suite, operation string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("read samples yaml: %w", err)
	}

	var doc map[string]map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, false, fmt.Errorf("%w: %s is not a suite -> operation mapping: %v", ErrKeyNotFound, s.path, err)
	}

	ops, ok := doc[suite]
	if !ok {
		return nil, false, nil
	}
	value, ok := ops[operation]
	if !ok {
		return nil, false, nil
	}

	encoded, err := json.Marshal(jsonCompatible(value))
	if err != nil {
		return nil, false, fmt.Errorf("sample %s/%s is not json-serializable: %w", suite, operation, err)
	}
	return json.RawMessage(encoded), true, nil
}

// jsonCompatible приводит map[any]any из yaml.v3 к map[string]any.
func jsonCompatible(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = jsonCompatible(item)
		}
		return out
	case map[string]any:
		for k, item := range val {
			val[k] = jsonCompatible(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = jsonCompatible(item)
		}
		return val
	default:
		return v
	}
}
