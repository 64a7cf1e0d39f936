// Package debug записывает журнал обращений к Kolibri API.
//
// Recorder реализует kolibri.Journal: клиент отдаёт ему каждый Exchange,
// а Finalize сохраняет трейс сессии в JSON файл для последующего анализа
// (сколько было 429, сколько ждали, какие операции обслуживались из samples).
package debug

import (
	"time"
)

// SessionLog - полный трейс одной сессии клиента.
type SessionLog struct {
	// RunID - уникальный идентификатор запуска (используется в имени файла)
	RunID string `json:"run_id"`

	// Timestamp - время начала сессии
	Timestamp time.Time `json:"timestamp"`

	// BaseURL - адрес Kolibri сервера
	BaseURL string `json:"base_url,omitempty"`

	// Duration - общая длительность в миллисекундах
	Duration int64 `json:"duration_ms"`

	// Exchanges - вызовы в порядке завершения
	Exchanges []ExchangeEntry `json:"exchanges"`

	Summary Summary `json:"summary"`
}

// ExchangeEntry - один вызов операции или verb запроса.
type ExchangeEntry struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Source    string    `json:"source"`
	Timestamp time.Time `json:"timestamp"`

	Method string `json:"method,omitempty"`
	URL    string `json:"url,omitempty"`
	Status int    `json:"status,omitempty"`

	// Attempts - попытки Dispatch, WaitsMs - паузы после 429
	Attempts int     `json:"attempts,omitempty"`
	WaitsMs  []int64 `json:"waits_ms,omitempty"`

	Duration int64 `json:"duration_ms"`

	// Body - тело ответа (может быть обрезано по MaxBodySize)
	Body          string `json:"body,omitempty"`
	BodySize      int    `json:"body_size"`
	BodyTruncated bool   `json:"body_truncated,omitempty"`

	Error string `json:"error,omitempty"`
}

// Summary - агрегированная статистика сессии.
type Summary struct {
	TotalExchanges int `json:"total_exchanges"`
	TotalAttempts  int `json:"total_attempts"`

	// RateLimited - сколько вызовов хотя бы раз получили 429
	RateLimited int   `json:"rate_limited"`
	TotalWaitMs int64 `json:"total_wait_ms"`

	FromSamples int `json:"from_samples"`

	ByOperation map[string]int `json:"by_operation,omitempty"`
	ByStatus    map[int]int    `json:"by_status,omitempty"`

	Errors []string `json:"errors,omitempty"`
}
