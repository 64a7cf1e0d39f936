// Package utils предоставляет простой файловый логгер для CLI и TUI утилит SDK.
//
// Логгер создаёт .log файл с timestamp в имени и пишет строки вида
// [YYYY-MM-DD HH:MM:SS] LEVEL: message key1=value1 key2=value2.
// До вызова InitLogger все вызовы Info/Warn/... молча игнорируются,
// поэтому библиотечный код может логировать без проверок.
// Thread-safe через sync.Mutex.
package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

var (
	logOut      io.Writer
	logFile     *os.File
	logMutex    sync.Mutex
	initialized bool
)

// InitLogger создает/открывает .log файл в директории dir.
//
// Имя файла: <name>-YYYY-MM-DD-HH-MM.log (например, kolibri-2026-10-18-15-30.log).
// Пустой dir означает текущую директорию, пустой name - "kolibri".
func InitLogger(dir, name string) error {
	logMutex.Lock()
	defer logMutex.Unlock()

	if initialized {
		return nil
	}

	if name == "" {
		name = "kolibri"
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create log dir: %w", err)
		}
	}

	filename := filepath.Join(dir, fmt.Sprintf("%s-%s.log", name, time.Now().Format("2006-01-02-15-04")))

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	logFile = f
	logOut = f
	initialized = true

	// Пишем напрямую, мьютекс уже захвачен
	writeLine(formatLine("INFO", "Logger initialized", "file", filename))

	return nil
}

// SetOutput направляет лог в произвольный writer (тесты, stderr).
// nil отключает логирование.
func SetOutput(w io.Writer) {
	logMutex.Lock()
	defer logMutex.Unlock()

	logOut = w
	initialized = w != nil
}

// Info - информационное сообщение.
func Info(msg string, keyvals ...any) {
	log("INFO", msg, keyvals...)
}

// Error - сообщение об ошибке.
func Error(msg string, keyvals ...any) {
	log("ERROR", msg, keyvals...)
}

// Debug - отладочное сообщение.
func Debug(msg string, keyvals ...any) {
	log("DEBUG", msg, keyvals...)
}

// Warn - предупреждение.
func Warn(msg string, keyvals ...any) {
	log("WARN", msg, keyvals...)
}

func formatLine(level, msg string, keyvals ...any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s: %s", time.Now().Format("2006-01-02 15:04:05"), level, msg)

	for i := 0; i+1 < len(keyvals); i += 2 {
		fmt.Fprintf(&b, " %v=%v", keyvals[i], keyvals[i+1])
	}
	// Непарный хвост не теряем
	if len(keyvals)%2 == 1 {
		fmt.Fprintf(&b, " %v=?", keyvals[len(keyvals)-1])
	}

	b.WriteString("\n")
	return b.String()
}

// writeLine пишет строку под уже захваченным мьютексом.
// При ошибке записи - fallback на stderr.
func writeLine(line string) {
	if _, err := io.WriteString(logOut, line); err != nil {
		fmt.Fprint(os.Stderr, line)
		fmt.Fprintf(os.Stderr, "[LOGGER ERROR: write failed: %v]\n", err)
		return
	}

	if logFile != nil && logOut == io.Writer(logFile) {
		if err := logFile.Sync(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Sync failed: %v]\n", err)
		}
	}
}

func log(level, msg string, keyvals ...any) {
	logMutex.Lock()
	defer logMutex.Unlock()

	if !initialized || logOut == nil {
		return
	}

	writeLine(formatLine(level, msg, keyvals...))
}

// Close закрывает лог-файл.
//
// Вызывается через defer в main().
func Close() {
	logMutex.Lock()
	defer logMutex.Unlock()

	if logFile != nil {
		if err := logFile.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "[LOGGER WARNING: Close failed: %v]\n", err)
		}
		logFile = nil
	}
	logOut = nil
	initialized = false
}
