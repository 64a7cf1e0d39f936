package config

import (
	"os"
	"path/filepath"
)

// DefaultConfigName - имя файла, который ищут утилиты.
const DefaultConfigName = "config.yaml"

// FindConfigPath находит путь к config.yaml.
//
// Порядок поиска:
//  1. Флаг -config (если указан)
//  2. Текущая директория
//  3. Директория бинарника
//
// Возвращает пустую строку, если ничего не найдено: утилиты тогда работают на дефолтах.
func FindConfigPath(flagValue string) string {
	if flagValue != "" {
		return resolveAbsPath(flagValue)
	}

	if _, err := os.Stat(DefaultConfigName); err == nil {
		return resolveAbsPath(DefaultConfigName)
	}

	if execPath, err := os.Executable(); err == nil {
		cfgPath := filepath.Join(filepath.Dir(execPath), DefaultConfigName)
		if _, err := os.Stat(cfgPath); err == nil {
			return cfgPath
		}
	}

	return ""
}

// LoadOrDefault грузит найденный конфиг или возвращает Default().
func LoadOrDefault(flagValue string) (*AppConfig, string, error) {
	path := FindConfigPath(flagValue)
	if path == "" {
		return Default(), "", nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}

func resolveAbsPath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return path
	}
	return abs
}
