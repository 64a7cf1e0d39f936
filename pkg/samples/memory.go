package samples

import (
	"context"
	"encoding/json"
	"sync"
)

// MemoryStore - потокобезопасное in-memory хранилище. Удобно в тестах.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]json.RawMessage
}

var _ Writer = (*MemoryStore)(nil)

// NewMemoryStore создает пустое хранилище.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]json.RawMessage)}
}

func memoryKey(suite, operation string) string {
	return suite + "\x00" + operation
}

// Put кладет значение без проверки контекста. Паникует на невалидном JSON -
// только для подготовки тестовых данных.
func (m *MemoryStore) Put(suite, operation string, value string) {
	raw, err := compactJSON([]byte(value))
	if err != nil {
		panic(err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[memoryKey(suite, operation)] = raw
}

func (m *MemoryStore) Lookup(_ context.Context, suite, operation string) (json.RawMessage, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.records[memoryKey(suite, operation)]
	return v, ok, nil
}

func (m *MemoryStore) Save(_ context.Context, suite, operation string, value json.RawMessage) error {
	raw, err := compactJSON(value)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records[memoryKey(suite, operation)] = raw
	return nil
}

func (m *MemoryStore) Location() string {
	return "memory"
}
