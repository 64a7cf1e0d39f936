package samples

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Колонки CSV файла. "function" принимается как синоним "operation"
// для файлов, записанных старыми утилитами.
const (
	columnSuite     = "suite"
	columnOperation = "operation"
	columnFunction  = "function"
	columnSample    = "sample"
)

// CSVStore читает samples из CSV с заголовком suite,operation,sample.
//
// Файл перечитывается на каждый Lookup: его часто правят руками во время
// написания тестов. При дубликатах побеждает последняя строка, поэтому Save
// просто дописывает строку в конец.
type CSVStore struct {
	path string
	mu   sync.Mutex
}

var _ Writer = (*CSVStore)(nil)

// NewCSVStore создает хранилище поверх файла path.
func NewCSVStore(path string) *CSVStore {
	return &CSVStore{path: path}
}

func (s *CSVStore) Location() string {
	return s.path
}

type csvColumns struct {
	suite, operation, sample int
}

func resolveColumns(header []string) (csvColumns, error) {
	cols := csvColumns{suite: -1, operation: -1, sample: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case columnSuite:
			cols.suite = i
		case columnOperation, columnFunction:
			cols.operation = i
		case columnSample:
			cols.sample = i
		}
	}

	var missing []string
	if cols.suite < 0 {
		missing = append(missing, columnSuite)
	}
	if cols.operation < 0 {
		missing = append(missing, columnOperation)
	}
	if cols.sample < 0 {
		missing = append(missing, columnSample)
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: columns %s", ErrKeyNotFound, strings.Join(missing, ", "))
	}
	return cols, nil
}

func (s *CSVStore) Lookup(ctx context.Context, suite, operation string) (json.RawMessage, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.path)
	if err != nil {
		return nil, false, fmt.Errorf("open samples csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, false, fmt.Errorf("%w: %s has no header", ErrKeyNotFound, s.path)
	}
	if err != nil {
		return nil, false, fmt.Errorf("read samples csv header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, false, fmt.Errorf("%s: %w", s.path, err)
	}

	var (
		value json.RawMessage
		found bool
		line  = 1
	)
	for {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, false, fmt.Errorf("read samples csv: %w", err)
		}
		line++

		if !cellEquals(record, cols.suite, suite) || !cellEquals(record, cols.operation, operation) {
			continue
		}
		if cols.sample >= len(record) {
			return nil, false, fmt.Errorf("%w: %s line %d has no sample cell", ErrKeyNotFound, s.path, line)
		}

		parsed, err := compactJSON([]byte(record[cols.sample]))
		if err != nil {
			return nil, false, fmt.Errorf("%s line %d: %w", s.path, line, err)
		}
		value, found = parsed, true
	}

	return value, found, nil
}

func cellEquals(record []string, idx int, want string) bool {
	return idx < len(record) && strings.TrimSpace(record[idx]) == want
}

// Save дописывает строку. Если файла нет - создает его с заголовком.
func (s *CSVStore) Save(ctx context.Context, suite, operation string, value json.RawMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := compactJSON(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, statErr := os.Stat(s.path)
	isNew := errors.Is(statErr, os.ErrNotExist)

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open samples csv for append: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if isNew {
		if err := w.Write([]string{columnSuite, columnOperation, columnSample}); err != nil {
			return fmt.Errorf("write samples csv header: %w", err)
		}
	}
	if err := w.Write([]string{suite, operation, string(raw)}); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush samples csv: %w", err)
	}
	return f.Sync()
}
