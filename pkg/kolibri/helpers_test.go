package kolibri

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// recordingSleeper запоминает паузы вместо реального ожидания.
type recordingSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func (s *recordingSleeper) Waits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

// memoryJournal собирает Exchange в памяти.
type memoryJournal struct {
	mu      sync.Mutex
	entries []Exchange
}

func (j *memoryJournal) Record(e Exchange) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *memoryJournal) Entries() []Exchange {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]Exchange(nil), j.entries...)
}

// failingTransport проваливает тест при любом сетевом вызове.
type failingTransport struct {
	t *testing.T
}

func (f failingTransport) Do(req *http.Request) (*http.Response, error) {
	f.t.Errorf("unexpected network call: %s %s", req.Method, req.URL)
	return nil, errors.New("network disabled")
}

type testEnv struct {
	client  *Client
	out     *bytes.Buffer
	sleeper *recordingSleeper
	journal *memoryJournal
}

func newTestClient(t *testing.T, baseURL string, cfg Config, opts ...Option) *testEnv {
	t.Helper()

	env := &testEnv{
		out:     &bytes.Buffer{},
		sleeper: &recordingSleeper{},
		journal: &memoryJournal{},
	}
	cfg.BaseURL = baseURL

	all := append([]Option{
		WithOutput(env.out),
		WithSleeper(env.sleeper.Sleep),
		WithJournal(env.journal),
	}, opts...)

	c, err := New(cfg, all...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	env.client = c
	return env
}

// jsonServer отвечает fn(r) -> (status, body) как application/json.
func jsonServer(t *testing.T, fn func(r *http.Request) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := fn(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		switch b := body.(type) {
		case nil:
		case string:
			_, _ = w.Write([]byte(b))
		case []byte:
			_, _ = w.Write(b)
		default:
			_ = json.NewEncoder(w).Encode(b)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}
