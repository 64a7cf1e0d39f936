package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// AppConfig - корневая структура конфигурации.
// Зеркалит структуру config.yaml.
type AppConfig struct {
	Kolibri         KolibriConfig   `yaml:"kolibri"`
	S3              S3Config        `yaml:"s3"`
	ImageProcessing ImageProcConfig `yaml:"image_processing"`
	App             AppSpecific     `yaml:"app"`
}

// KolibriConfig - настройки клиента Kolibri content API.
type KolibriConfig struct {
	BaseURL              string `yaml:"base_url"`                // Базовый URL сервера Kolibri
	Retries              int    `yaml:"retries"`                 // Максимум попыток при 429
	TestMode             bool   `yaml:"test_mode"`               // Отдавать ответы из samples вместо сети
	TestModeDefaultEmpty bool   `yaml:"test_mode_default_empty"` // Пустой ответ вместо ошибки, если sample нет
	QuietMode            bool   `yaml:"quiet_mode"`              // Не печатать ответы и статусы
	SamplesPath          string `yaml:"samples_path"`            // csv, yaml или sqlite файл с samples
	SamplesFormat        string `yaml:"samples_format"`          // Пусто - по расширению файла
	LookupErrorPolicy    string `yaml:"lookup_error_policy"`     // fail | live
	RecordSamples        bool   `yaml:"record_samples"`          // Сохранять живые ответы в samples
	Timeout              string `yaml:"timeout"`                 // Timeout одной попытки, например "30s"
	DefaultWait          string `yaml:"default_wait"`            // Ожидание при 429 без extras.wait_seconds
	RateLimit            int    `yaml:"rate_limit"`              // Запросов в минуту, 0 - без ограничения
	BurstLimit           int    `yaml:"burst_limit"`             // Burst для rate limiter
	Username             string `yaml:"username"`                // Поддерживает ${VAR}
	Password             string `yaml:"password"`                // Поддерживает ${VAR}
	Token                string `yaml:"token"`                   // Поддерживает ${VAR}
}

// GetDefaults возвращает копию с дефолтами для незаполненных полей.
func (c *KolibriConfig) GetDefaults() KolibriConfig {
	result := *c

	if result.BaseURL == "" {
		result.BaseURL = "http://localhost:8080"
	}
	if result.Retries == 0 {
		result.Retries = 20
	}
	if result.SamplesPath == "" {
		result.SamplesPath = "./sampleresponses.csv"
	}
	if result.LookupErrorPolicy == "" {
		result.LookupErrorPolicy = "fail"
	}
	if result.Timeout == "" {
		result.Timeout = "30s"
	}
	if result.DefaultWait == "" {
		result.DefaultWait = "10s"
	}
	if result.RateLimit > 0 && result.BurstLimit == 0 {
		result.BurstLimit = 1
	}

	return result
}

// TimeoutDuration парсит Timeout.
func (c *KolibriConfig) TimeoutDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid kolibri.timeout format: %w", err)
	}
	return d, nil
}

// DefaultWaitDuration парсит DefaultWait.
func (c *KolibriConfig) DefaultWaitDuration() (time.Duration, error) {
	d, err := time.ParseDuration(c.DefaultWait)
	if err != nil {
		return 0, fmt.Errorf("invalid kolibri.default_wait format: %w", err)
	}
	return d, nil
}

// S3Config - настройки бакета, куда можно складывать скачанный контент.
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`     // Префикс ключей для сохранённого контента
	AccessKey string `yaml:"access_key"` // Поддерживает ${VAR}
	SecretKey string `yaml:"secret_key"` // Поддерживает ${VAR}
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled сообщает, настроен ли S3 вообще.
func (c S3Config) Enabled() bool {
	return c.Endpoint != "" && c.Bucket != ""
}

// ImageProcConfig - настройки превью.
type ImageProcConfig struct {
	MaxWidth int `yaml:"max_width"`
	Quality  int `yaml:"quality"`
}

// AppSpecific - общие настройки утилит.
type AppSpecific struct {
	Debug       bool   `yaml:"debug"`
	LogsDir     string `yaml:"logs_dir"`     // Куда писать .log файлы
	LogPrefix   string `yaml:"log_prefix"`   // Префикс имени лог файла
	JournalDir  string `yaml:"journal_dir"`  // Куда сохранять журнал запросов (пусто - не сохранять)
	MetricsAddr string `yaml:"metrics_addr"` // Адрес для /metrics, например ":9091"
}

// Default возвращает конфигурацию без файла: только дефолты.
func Default() *AppConfig {
	cfg := &AppConfig{}
	cfg.Kolibri = cfg.Kolibri.GetDefaults()
	return cfg
}

// Load читает YAML файл, подставляет ENV переменные и возвращает готовую структуру.
//
// Если рядом с конфигом лежит .env, он загружается до подстановки переменных
// (уже выставленные переменные окружения не перезаписываются).
func Load(path string) (*AppConfig, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found at: %s", path)
	}

	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
	}

	rawBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(rawBytes)
}

// Parse разбирает YAML (с подстановкой ${VAR}) и применяет дефолты.
func Parse(raw []byte) (*AppConfig, error) {
	contentWithEnv := os.ExpandEnv(string(raw))

	var cfg AppConfig
	if err := yaml.Unmarshal([]byte(contentWithEnv), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse yaml: %w", err)
	}

	cfg.Kolibri = cfg.Kolibri.GetDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate проверяет формат полей.
func (c *AppConfig) validate() error {
	k := c.Kolibri

	if !strings.HasPrefix(k.BaseURL, "http://") && !strings.HasPrefix(k.BaseURL, "https://") {
		return fmt.Errorf("kolibri.base_url must be an http(s) url, got %q", k.BaseURL)
	}
	if k.Retries < 0 {
		return fmt.Errorf("kolibri.retries must be positive, got %d", k.Retries)
	}
	if _, err := k.TimeoutDuration(); err != nil {
		return err
	}
	if _, err := k.DefaultWaitDuration(); err != nil {
		return err
	}
	switch k.LookupErrorPolicy {
	case "fail", "live":
	default:
		return fmt.Errorf("kolibri.lookup_error_policy must be 'fail' or 'live', got %q", k.LookupErrorPolicy)
	}
	switch k.SamplesFormat {
	case "", "csv", "yaml", "sqlite":
	default:
		return fmt.Errorf("kolibri.samples_format must be csv, yaml or sqlite, got %q", k.SamplesFormat)
	}
	if k.Username != "" && k.Token != "" {
		return fmt.Errorf("kolibri.username and kolibri.token are mutually exclusive")
	}
	if c.S3.Endpoint != "" && c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required when s3.endpoint is set")
	}
	return nil
}
