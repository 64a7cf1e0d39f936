// Package kolibri provides a reusable SDK for the Kolibri content API.
//
// Architecture:
//
// Domain operations (GetChannels, GetChildren, GetNodeDetails, FetchContent) are
// described as Operation values and run through Client.Execute. Execute either
// calls the live implementation (verb builder -> Dispatch -> Inspect) or, in
// test mode, serves a recorded sample from a samples.Store through the same
// Inspect path.
//
// Dispatch owns the rate-limit loop: 429 responses are retried up to
// Config.Retries times, waiting extras.wait_seconds from the body or
// Config.DefaultWait.
//
// Per-call diagnostics (the request that was sent, attempts, waits) travel on
// the returned Response and are sent to an optional Journal. A Client carries
// no mutable per-call state.
package kolibri

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/ilkoid/kolibri-sdk/pkg/config"
	"github.com/ilkoid/kolibri-sdk/pkg/samples"
	"github.com/ilkoid/kolibri-sdk/pkg/utils"
)

// Дефолты, которые New подставляет в нулевые поля Config.
const (
	DefaultRetries = 20
	DefaultWait    = 10 * time.Second
)

// HTTPClient интерфейс для выполнения HTTP запросов.
//
// Позволяет мокировать транспорт в тестах.
// Стандартный *http.Client реализует этот интерфейс.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// LookupErrorPolicy определяет, что делать, если хранилище samples
// не смогло ответить из-за отсутствующего ключа/колонки (samples.ErrKeyNotFound).
type LookupErrorPolicy string

const (
	// LookupErrorFail - вернуть ErrFixtureLookup.
	LookupErrorFail LookupErrorPolicy = "fail"
	// LookupErrorLive - тихо уйти в живой запрос (Exchange помечается SourceLiveFallback).
	LookupErrorLive LookupErrorPolicy = "live"
)

// Credentials передаются серверу как есть. Token имеет приоритет над basic auth.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Config - неизменяемая конфигурация клиента.
type Config struct {
	BaseURL              string
	Retries              int
	TestMode             bool
	TestModeDefaultEmpty bool
	QuietMode            bool
	SamplesPath          string
	SamplesFormat        samples.Format
	LookupErrorPolicy    LookupErrorPolicy
	RecordSamples        bool

	// Timeout одной попытки. 0 - без таймаута.
	Timeout time.Duration
	// DefaultWait - пауза при 429, если сервер не сказал сколько ждать.
	DefaultWait time.Duration
	// RateLimit - запросов в минуту для клиентского лимитера. 0 - выключен.
	RateLimit  int
	BurstLimit int

	Credentials Credentials
}

// Sleeper блокирует вызывающую горутину на d или до отмены ctx.
type Sleeper func(ctx context.Context, d time.Duration) error

// Client - клиент Kolibri API. Конфигурация не меняется после New.
type Client struct {
	cfg     Config
	baseURL *url.URL

	httpClient HTTPClient
	noRedirect HTTPClient

	store   samples.Store
	journal Journal
	out     io.Writer
	styles  inspectStyles
	sleep   Sleeper
	newID   func() string

	limiter  *rate.Limiter
	registry *prometheus.Registry
	metrics  *metrics
}

// Option настраивает Client при создании.
type Option func(*Client)

// WithHTTPClient подменяет транспорт.
func WithHTTPClient(hc HTTPClient) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSampleStore задает хранилище samples вместо открытия Config.SamplesPath.
func WithSampleStore(s samples.Store) Option {
	return func(c *Client) { c.store = s }
}

// WithJournal подключает журнал запросов.
func WithJournal(j Journal) Option {
	return func(c *Client) { c.journal = j }
}

// WithOutput задает, куда Inspector печатает ответы (по умолчанию stdout).
func WithOutput(w io.Writer) Option {
	return func(c *Client) { c.out = w }
}

// WithSleeper подменяет ожидание между попытками (тесты).
func WithSleeper(s Sleeper) Option {
	return func(c *Client) { c.sleep = s }
}

// WithRegistry регистрирует метрики клиента в переданном реестре.
func WithRegistry(r *prometheus.Registry) Option {
	return func(c *Client) { c.registry = r }
}

// New создает клиент.
//
// BaseURL обязателен. Retries и DefaultWait получают дефолты, если не заданы.
// В test mode без WithSampleStore хранилище открывается по Config.SamplesPath.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("kolibri base url is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid kolibri base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("kolibri base url must be absolute, got %q", cfg.BaseURL)
	}

	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.DefaultWait <= 0 {
		cfg.DefaultWait = DefaultWait
	}
	if cfg.LookupErrorPolicy == "" {
		cfg.LookupErrorPolicy = LookupErrorFail
	}

	c := &Client{
		cfg:     cfg,
		baseURL: base,
		out:     os.Stdout,
		sleep:   sleepContext,
		newID:   func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	c.noRedirect = withoutRedirects(c.httpClient)
	c.styles = newInspectStyles(lipgloss.NewRenderer(c.out))

	if c.store == nil && (cfg.TestMode || cfg.RecordSamples) && cfg.SamplesPath != "" {
		store, err := samples.Open(cfg.SamplesPath, cfg.SamplesFormat)
		if err != nil {
			return nil, fmt.Errorf("open samples store: %w", err)
		}
		c.store = store
	}

	if cfg.RateLimit > 0 {
		burst := cfg.BurstLimit
		if burst <= 0 {
			burst = 1
		}
		// RateLimit в запросах/минуту → rate.Limit в запросах/секунду
		c.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimit)/60.0), burst)
	}

	if c.registry == nil {
		c.registry = prometheus.NewRegistry()
	}
	c.metrics, err = newMetrics(c.registry)
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	utils.Debug("kolibri client created",
		"base_url", cfg.BaseURL,
		"retries", cfg.Retries,
		"test_mode", cfg.TestMode,
		"quiet", cfg.QuietMode)

	return c, nil
}

// NewFromConfig создает клиент из YAML секции kolibri.
func NewFromConfig(cfg config.KolibriConfig, opts ...Option) (*Client, error) {
	cfg = cfg.GetDefaults()

	timeout, err := cfg.TimeoutDuration()
	if err != nil {
		return nil, err
	}
	wait, err := cfg.DefaultWaitDuration()
	if err != nil {
		return nil, err
	}

	return New(Config{
		BaseURL:              cfg.BaseURL,
		Retries:              cfg.Retries,
		TestMode:             cfg.TestMode,
		TestModeDefaultEmpty: cfg.TestModeDefaultEmpty,
		QuietMode:            cfg.QuietMode,
		SamplesPath:          cfg.SamplesPath,
		SamplesFormat:        samples.Format(cfg.SamplesFormat),
		LookupErrorPolicy:    LookupErrorPolicy(cfg.LookupErrorPolicy),
		RecordSamples:        cfg.RecordSamples,
		Timeout:              timeout,
		DefaultWait:          wait,
		RateLimit:            cfg.RateLimit,
		BurstLimit:           cfg.BurstLimit,
		Credentials: Credentials{
			Username: cfg.Username,
			Password: cfg.Password,
			Token:    cfg.Token,
		},
	}, opts...)
}

// Config возвращает копию конфигурации.
func (c *Client) Config() Config {
	return c.cfg
}

// Registry возвращает реестр с метриками клиента (для promhttp).
func (c *Client) Registry() *prometheus.Registry {
	return c.registry
}

// SampleStore возвращает подключенное хранилище samples (может быть nil).
func (c *Client) SampleStore() samples.Store {
	return c.store
}

// Close освобождает хранилище samples.
func (c *Client) Close() error {
	if c.store == nil {
		return nil
	}
	return samples.Close(c.store)
}

// resolve склеивает путь с базовым URL по правилам RFC 3986:
// абсолютный путь заменяет путь базы, абсолютный URL заменяет всё.
func (c *Client) resolve(ref string) (string, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return c.baseURL.ResolveReference(u).String(), nil
}

// withoutRedirects возвращает копию *http.Client, которая не ходит по редиректам.
// Для произвольных HTTPClient редиректы остаются на их совести.
func withoutRedirects(hc HTTPClient) HTTPClient {
	std, ok := hc.(*http.Client)
	if !ok {
		return hc
	}
	cp := *std
	cp.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &cp
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
