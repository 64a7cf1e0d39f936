// Package samples хранит записанные ответы API (samples/fixtures) для test mode.
//
// Запись адресуется парой (suite, operation): suite обычно "samples",
// operation - имя доменной операции клиента ("get_node_details").
// Значение - произвольный JSON.
//
// Хранилище различает три исхода Lookup:
//   - запись найдена (found=true), включая явно пустое значение
//   - записи нет (found=false, err=nil)
//   - само хранилище не смогло ответить (err != nil); если не хватает
//     обязательного поля/колонки, ошибка оборачивает ErrKeyNotFound
package samples

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// DefaultSuite - suite, под которым клиент ищет samples.
const DefaultSuite = "samples"

// ErrKeyNotFound - в хранилище нет обязательного ключа (колонки, поля),
// то есть файл не того формата. Это НЕ "нет sample для операции".
var ErrKeyNotFound = errors.New("samples: required key not found")

// ErrReadOnly возвращается Save для хранилищ без записи.
var ErrReadOnly = errors.New("samples: store is read-only")

// Store - источник samples.
type Store interface {
	// Lookup ищет sample. found=false означает отсутствие записи.
	Lookup(ctx context.Context, suite, operation string) (value json.RawMessage, found bool, err error)

	// Location - человекочитаемое место хранения (путь к файлу) для сообщений об ошибках.
	Location() string
}

// Writer - хранилище, в которое можно записывать samples.
type Writer interface {
	Store
	Save(ctx context.Context, suite, operation string, value json.RawMessage) error
}

// IsEmpty сообщает, что значение пустое: отсутствует, null или пустой список.
// Пустой объект {} пустым не считается.
func IsEmpty(value json.RawMessage) bool {
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return true
	}
	if trimmed[0] != '[' {
		return false
	}
	var list []json.RawMessage
	if err := json.Unmarshal(trimmed, &list); err != nil {
		return false
	}
	return len(list) == 0
}

// Format - формат файла хранилища.
type Format string

const (
	FormatCSV    Format = "csv"
	FormatYAML   Format = "yaml"
	FormatSQLite Format = "sqlite"
)

// DetectFormat определяет формат по расширению файла.
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".db", ".sqlite", ".sqlite3":
		return FormatSQLite, nil
	default:
		return "", fmt.Errorf("samples: cannot detect format of %q", path)
	}
}

// Open открывает хранилище по пути. Пустой format - определить по расширению.
//
// CSV и YAML читаются при каждом Lookup, поэтому файл может ещё не существовать.
func Open(path string, format Format) (Store, error) {
	if format == "" {
		detected, err := DetectFormat(path)
		if err != nil {
			return nil, err
		}
		format = detected
	}

	switch format {
	case FormatCSV:
		return NewCSVStore(path), nil
	case FormatYAML:
		return NewYAMLStore(path), nil
	case FormatSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("samples: unsupported format %q", format)
	}
}

// Close закрывает хранилище, если ему есть что закрывать.
func Close(s Store) error {
	if c, ok := s.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// compactJSON проверяет и нормализует JSON значение. Пустой ввод - пустое значение.
func compactJSON(raw []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return json.RawMessage{}, nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, fmt.Errorf("invalid sample json: %w", err)
	}
	return json.RawMessage(buf.Bytes()), nil
}
