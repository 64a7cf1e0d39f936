package debug

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/ilkoid/kolibri-sdk/pkg/kolibri"
)

// Recorder накапливает Exchange клиента и сохраняет их в JSON файл.
//
// Потокобезопасен - может использоваться из разных горутин.
type Recorder struct {
	mu sync.Mutex

	config RecorderConfig
	log    SessionLog
	errors []string
}

var _ kolibri.Journal = (*Recorder)(nil)

// RecorderConfig конфигурация для создания Recorder.
type RecorderConfig struct {
	// LogsDir - директория для сохранения трейсов
	LogsDir string

	// BaseURL пишется в заголовок трейса
	BaseURL string

	// IncludeBodies - включать тела ответов в трейс
	IncludeBodies bool

	// MaxBodySize - максимальный размер тела (превышение обрезается)
	// 0 означает без ограничений
	MaxBodySize int
}

// NewRecorder создает новый Recorder с заданной конфигурацией.
//
// Если LogsDir не существует, пытается создать её.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.LogsDir != "" {
		if err := os.MkdirAll(cfg.LogsDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
	}

	// RunID на основе времени
	runID := fmt.Sprintf("kolibri_%s", time.Now().Format("20060102_150405"))

	return &Recorder{
		config: cfg,
		log: SessionLog{
			RunID:     runID,
			Timestamp: time.Now(),
			BaseURL:   cfg.BaseURL,
		},
	}, nil
}

// Record добавляет Exchange в трейс.
func (r *Recorder) Record(e kolibri.Exchange) {
	entry := ExchangeEntry{
		ID:        e.ID,
		Operation: e.Operation,
		Source:    string(e.Source),
		Timestamp: e.StartedAt,
		Attempts:  e.Attempts,
		Duration:  e.Duration.Milliseconds(),
	}

	if e.Request != nil {
		entry.Method = e.Request.Method
		entry.URL = e.Request.URL
		if full, err := e.Request.FullURL(); err == nil {
			entry.URL = full
		}
	}
	for _, w := range e.Waits {
		entry.WaitsMs = append(entry.WaitsMs, w.Milliseconds())
	}
	if e.Response != nil {
		entry.Status = e.Response.StatusCode
		entry.BodySize = len(e.Response.Body)
		if r.config.IncludeBodies {
			entry.Body, entry.BodyTruncated = r.renderBody(e.Response.Body)
		}
	}
	if e.Err != nil {
		entry.Error = e.Err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Exchanges = append(r.log.Exchanges, entry)
	if entry.Error != "" {
		r.errors = append(r.errors, fmt.Sprintf("%s: %s", entry.Operation, entry.Error))
	}
}

// renderBody готовит тело для JSON: бинарные данные не пишутся.
func (r *Recorder) renderBody(body []byte) (string, bool) {
	if len(body) == 0 {
		return "", false
	}
	if !utf8.Valid(body) {
		return fmt.Sprintf("<binary, %d bytes>", len(body)), false
	}
	s := string(body)
	if r.config.MaxBodySize > 0 && len(s) > r.config.MaxBodySize {
		return truncateString(s, r.config.MaxBodySize), true
	}
	return s, false
}

// Entries возвращает копию накопленных записей.
func (r *Recorder) Entries() []ExchangeEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]ExchangeEntry(nil), r.log.Exchanges...)
}

// Summary считает статистику по текущим записям.
func (r *Recorder) Summary() Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buildSummary()
}

// Finalize завершает запись и сохраняет трейс в файл.
//
// Возвращает путь к сохраненному файлу или ошибку.
func (r *Recorder) Finalize(duration time.Duration) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.log.Duration = duration.Milliseconds()
	r.log.Summary = r.buildSummary()

	data, err := json.MarshalIndent(r.log, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal journal: %w", err)
	}

	filePath := r.getFilePath()
	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write journal: %w", err)
	}

	return filePath, nil
}

// buildSummary формирует агрегированную статистику. Вызывается под mu.
func (r *Recorder) buildSummary() Summary {
	summary := Summary{
		ByOperation: make(map[string]int),
		ByStatus:    make(map[int]int),
		Errors:      append([]string(nil), r.errors...),
	}

	for _, e := range r.log.Exchanges {
		summary.TotalExchanges++
		summary.TotalAttempts += e.Attempts
		summary.ByOperation[e.Operation]++
		if e.Status != 0 {
			summary.ByStatus[e.Status]++
		}
		if e.Source == string(kolibri.SourceSample) {
			summary.FromSamples++
		}
		if len(e.WaitsMs) > 0 {
			summary.RateLimited++
		}
		for _, w := range e.WaitsMs {
			summary.TotalWaitMs += w
		}
	}

	return summary
}

// getFilePath возвращает путь к файлу для сохранения.
func (r *Recorder) getFilePath() string {
	if r.config.LogsDir != "" {
		return filepath.Join(r.config.LogsDir, r.log.RunID+".json")
	}
	return r.log.RunID + ".json"
}

// truncateString обрезает строку и добавляет индикатор обрезки.
func truncateString(s string, maxSize int) string {
	if maxSize <= 0 || len(s) <= maxSize {
		return s
	}
	cut := maxSize
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "... (truncated)"
}

// GetRunID возвращает идентификатор текущей сессии.
func (r *Recorder) GetRunID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.log.RunID
}
