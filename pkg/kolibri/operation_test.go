package kolibri

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/kolibri-sdk/pkg/samples"
)

// errStore - хранилище, которое всегда падает с err.
type errStore struct {
	err error
}

func (s errStore) Lookup(context.Context, string, string) (json.RawMessage, bool, error) {
	return nil, false, s.err
}

func (s errStore) Location() string { return "broken.csv" }

func TestTestMode_ServesSampleWithoutNetwork(t *testing.T) {
	store := samples.NewMemoryStore()
	store.Put(samples.DefaultSuite, OpGetNodeDetails, `{"id": "abc"}`)

	env := newTestClient(t, "http://localhost:8080", Config{TestMode: true},
		WithSampleStore(store), WithHTTPClient(failingTransport{t: t}))

	resp, err := env.client.GetNodeDetails(context.Background(), "abc")
	require.NoError(t, err)

	assert.True(t, resp.OK())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, resp.FromSample)

	value, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": "abc"}, value)
	assert.JSONEq(t, `{"id":"abc"}`, string(resp.Body))

	// Sample проходит через Inspect как живой ответ
	assert.Contains(t, env.out.String(), "Success!")

	entries := env.journal.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, OpGetNodeDetails, entries[0].Operation)
	assert.Equal(t, SourceSample, entries[0].Source)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, 1.0, testutil.ToFloat64(env.client.metrics.lookups.WithLabelValues(OpGetNodeDetails, "hit")))
}

func TestTestMode_MissingFixture(t *testing.T) {
	store := samples.NewMemoryStore()
	store.Put(samples.DefaultSuite, OpGetChannels, `[]`)

	env := newTestClient(t, "http://localhost:8080", Config{TestMode: true},
		WithSampleStore(store), WithHTTPClient(failingTransport{t: t}))

	ctx := context.Background()
	calls := map[string]func() (*Response, error){
		OpGetChannels:    func() (*Response, error) { return env.client.GetChannels(ctx, true) },
		OpGetChildren:    func() (*Response, error) { return env.client.GetChildren(ctx, "root", "") },
		OpGetNodeDetails: func() (*Response, error) { return env.client.GetNodeDetails(ctx, "abc") },
		OpFetchContent:   func() (*Response, error) { return env.client.FetchContent(ctx, "/content/storage/a.mp4", "") },
	}

	for name, call := range calls {
		resp, err := call()
		assert.Nil(t, resp, name)

		var missing *MissingFixtureError
		require.ErrorAs(t, err, &missing, name)
		assert.Equal(t, name, missing.Operation)
		assert.Equal(t, "memory", missing.Location)
		assert.Contains(t, err.Error(), name)
		assert.Contains(t, err.Error(), "test_mode_default_empty")
		assert.Equal(t, ErrTypeMissingFixture, ClassifyError(err))
	}
}

func TestTestMode_DefaultEmpty(t *testing.T) {
	store := samples.NewMemoryStore()
	store.Put(samples.DefaultSuite, OpGetChannels, `[]`)

	env := newTestClient(t, "http://localhost:8080", Config{TestMode: true, TestModeDefaultEmpty: true},
		WithSampleStore(store), WithHTTPClient(failingTransport{t: t}))

	resp, err := env.client.GetChildren(context.Background(), "root", "")
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, "null", string(resp.Body))
	value, err := resp.JSON()
	require.NoError(t, err)
	assert.Nil(t, value)

	// Явно пустой sample отдаётся как есть
	resp, err = env.client.GetChannels(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(resp.Body))

	channels, err := env.client.ListChannels(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, channels)
}

func TestTestMode_LookupErrorPolicy(t *testing.T) {
	keyErr := fmt.Errorf("missing column %q: %w", "sample", samples.ErrKeyNotFound)

	t.Run("fail", func(t *testing.T) {
		env := newTestClient(t, "http://localhost:8080", Config{TestMode: true},
			WithSampleStore(errStore{err: keyErr}), WithHTTPClient(failingTransport{t: t}))

		_, err := env.client.GetNodeDetails(context.Background(), "abc")
		require.ErrorIs(t, err, ErrFixtureLookup)
		assert.ErrorIs(t, err, samples.ErrKeyNotFound)

		var missing *MissingFixtureError
		assert.False(t, errors.As(err, &missing), "lookup failure is not a missing sample")
	})

	t.Run("live", func(t *testing.T) {
		var hits atomic.Int32
		srv := jsonServer(t, func(r *http.Request) (int, any) {
			hits.Add(1)
			return http.StatusOK, `{"id": "live"}`
		})
		env := newTestClient(t, srv.URL, Config{TestMode: true, LookupErrorPolicy: LookupErrorLive},
			WithSampleStore(errStore{err: keyErr}))

		resp, err := env.client.GetNodeDetails(context.Background(), "abc")
		require.NoError(t, err)
		assert.False(t, resp.FromSample)
		assert.JSONEq(t, `{"id":"live"}`, string(resp.Body))
		assert.EqualValues(t, 1, hits.Load())

		entries := env.journal.Entries()
		require.Len(t, entries, 1)
		assert.Equal(t, SourceLiveFallback, entries[0].Source)
	})

	t.Run("other errors always fail", func(t *testing.T) {
		env := newTestClient(t, "http://localhost:8080", Config{TestMode: true, LookupErrorPolicy: LookupErrorLive},
			WithSampleStore(errStore{err: errors.New("disk on fire")}), WithHTTPClient(failingTransport{t: t}))

		_, err := env.client.GetNodeDetails(context.Background(), "abc")
		require.ErrorIs(t, err, ErrFixtureLookup)
		assert.Equal(t, ErrTypeFixtureLookup, ClassifyError(err))
	})
}

func TestTestMode_RequiresStore(t *testing.T) {
	env := newTestClient(t, "http://localhost:8080", Config{TestMode: true})

	_, err := env.client.GetChannels(context.Background(), true)
	assert.ErrorIs(t, err, ErrNoSampleStore)
}

func TestExecute_422FailsLiveAndFallback(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		return http.StatusUnprocessableEntity, `{"detail": "unsupported"}`
	})

	live := newTestClient(t, srv.URL, Config{})
	resp, err := live.client.GetNodeDetails(context.Background(), "abc")
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrNotImplemented)

	entries := live.journal.Entries()
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Response, "journal keeps the 422 response")
	assert.Equal(t, http.StatusUnprocessableEntity, entries[0].Response.StatusCode)

	keyErr := fmt.Errorf("no such column: %w", samples.ErrKeyNotFound)
	fallback := newTestClient(t, srv.URL, Config{TestMode: true, LookupErrorPolicy: LookupErrorLive},
		WithSampleStore(errStore{err: keyErr}))
	_, err = fallback.client.GetNodeDetails(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrNotImplemented)
}

func TestExecute_RecordSamples(t *testing.T) {
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		return http.StatusOK, `[{"id": "c1", "name": "Khan"}]`
	})
	store := samples.NewMemoryStore()
	env := newTestClient(t, srv.URL, Config{QuietMode: true, RecordSamples: true}, WithSampleStore(store))

	_, err := env.client.GetChannels(context.Background(), true)
	require.NoError(t, err)

	value, found, err := store.Lookup(context.Background(), samples.DefaultSuite, OpGetChannels)
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `[{"id":"c1","name":"Khan"}]`, string(value))

	// Записанный sample отдаётся в test mode
	replay := newTestClient(t, "http://localhost:8080", Config{QuietMode: true, TestMode: true},
		WithSampleStore(store), WithHTTPClient(failingTransport{t: t}))
	channels, err := replay.client.ListChannels(context.Background(), true)
	require.NoError(t, err)
	require.Len(t, channels, 1)
	assert.Equal(t, "Khan", channels[0].Name)
}

func TestExecute_JournalCarriesAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		if hits.Add(1) < 3 {
			return http.StatusTooManyRequests, `{"extras": {"wait_seconds": 2}}`
		}
		return http.StatusOK, `{}`
	})
	env := newTestClient(t, srv.URL, Config{QuietMode: true})

	_, err := env.client.GetNodeDetails(context.Background(), "abc")
	require.NoError(t, err)

	entries := env.journal.Entries()
	require.Len(t, entries, 1)
	e := entries[0]
	assert.Equal(t, SourceLive, e.Source)
	assert.Equal(t, 3, e.Attempts)
	assert.Len(t, e.Waits, 2)
	require.NotNil(t, e.Request)
	assert.Equal(t, srv.URL+"/api/content/contentnode/abc", e.Request.URL)
}
