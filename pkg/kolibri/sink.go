package kolibri

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// ContentSink - куда сохранять скачанный контент.
// Реализации: FileSink (локальная папка) и s3storage.Client.
type ContentSink interface {
	Save(ctx context.Context, name string, data []byte) error
}

// FileSink пишет контент в файлы внутри Dir.
type FileSink struct {
	Dir string
}

// Save создает промежуточные папки и пишет файл Dir/name.
func (s FileSink) Save(_ context.Context, name string, data []byte) error {
	path := filepath.Join(s.Dir, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create dir for %s: %w", name, err)
	}
	return writeFile(path, data)
}

// writeFile открывает path на запись и гарантированно закрывает его.
// Ошибка Close возвращается, если запись прошла успешно.
func writeFile(path string, data []byte) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", path, cerr)
		}
	}()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
