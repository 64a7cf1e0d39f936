package debug

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/kolibri-sdk/pkg/kolibri"
	"github.com/ilkoid/kolibri-sdk/pkg/samples"
)

func TestRecorder_RecordAndSummary(t *testing.T) {
	rec, err := NewRecorder(RecorderConfig{IncludeBodies: true, MaxBodySize: 8})
	require.NoError(t, err)

	rec.Record(kolibri.Exchange{
		ID:        "1",
		Operation: "get_channels",
		Source:    kolibri.SourceLive,
		Request:   &kolibri.Request{Method: "GET", URL: "http://k/api/content/channel"},
		Response:  &kolibri.Response{StatusCode: 200, Body: []byte(`[{"id":"c1","name":"long"}]`)},
		Attempts:  3,
		Waits:     []time.Duration{2 * time.Second, 10 * time.Second},
		Duration:  1500 * time.Millisecond,
	})
	rec.Record(kolibri.Exchange{
		ID:        "2",
		Operation: "get_node_details",
		Source:    kolibri.SourceSample,
		Response:  &kolibri.Response{StatusCode: 200, Body: []byte{0xff, 0xfe}},
	})
	rec.Record(kolibri.Exchange{
		ID:        "3",
		Operation: "fetch_content",
		Source:    kolibri.SourceSample,
		Err:       errors.New("no sample"),
	})

	entries := rec.Entries()
	require.Len(t, entries, 3)
	assert.Equal(t, "GET", entries[0].Method)
	assert.Equal(t, []int64{2000, 10000}, entries[0].WaitsMs)
	assert.True(t, entries[0].BodyTruncated)
	assert.True(t, strings.HasSuffix(entries[0].Body, "... (truncated)"))
	assert.Equal(t, "<binary, 2 bytes>", entries[1].Body)
	assert.Equal(t, "no sample", entries[2].Error)

	s := rec.Summary()
	assert.Equal(t, 3, s.TotalExchanges)
	assert.Equal(t, 3, s.TotalAttempts)
	assert.Equal(t, 1, s.RateLimited)
	assert.Equal(t, int64(12000), s.TotalWaitMs)
	assert.Equal(t, 2, s.FromSamples)
	assert.Equal(t, 2, s.ByStatus[200])
	assert.Equal(t, []string{"fetch_content: no sample"}, s.Errors)
}

func TestRecorder_BodiesExcludedByDefault(t *testing.T) {
	rec, err := NewRecorder(RecorderConfig{})
	require.NoError(t, err)

	rec.Record(kolibri.Exchange{Operation: "x", Response: &kolibri.Response{StatusCode: 200, Body: []byte("secret")}})
	entries := rec.Entries()
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Body)
	assert.Equal(t, 6, entries[0].BodySize)
}

func TestRecorder_FinalizeWritesJSON(t *testing.T) {
	dir := t.TempDir()
	rec, err := NewRecorder(RecorderConfig{LogsDir: dir, BaseURL: "http://k"})
	require.NoError(t, err)

	rec.Record(kolibri.Exchange{Operation: "get_channels", Source: kolibri.SourceLive})

	path, err := rec.Finalize(time.Second)
	require.NoError(t, err)
	assert.Contains(t, path, rec.GetRunID())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var log SessionLog
	require.NoError(t, json.Unmarshal(data, &log))
	assert.Equal(t, "http://k", log.BaseURL)
	assert.Equal(t, int64(1000), log.Duration)
	assert.Equal(t, 1, log.Summary.TotalExchanges)
}

func TestRecorder_AsClientJournal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":"n1"}]`))
	}))
	defer srv.Close()

	rec, err := NewRecorder(RecorderConfig{IncludeBodies: true})
	require.NoError(t, err)

	store := samples.NewMemoryStore()
	store.Put(samples.DefaultSuite, kolibri.OpGetNodeDetails, `{"id":"abc"}`)

	live, err := kolibri.New(kolibri.Config{BaseURL: srv.URL, QuietMode: true},
		kolibri.WithJournal(rec), kolibri.WithOutput(io.Discard))
	require.NoError(t, err)
	_, err = live.GetChildren(context.Background(), "root", "")
	require.NoError(t, err)

	replay, err := kolibri.New(kolibri.Config{BaseURL: srv.URL, QuietMode: true, TestMode: true},
		kolibri.WithJournal(rec), kolibri.WithSampleStore(store), kolibri.WithOutput(io.Discard))
	require.NoError(t, err)
	_, err = replay.GetNodeDetails(context.Background(), "abc")
	require.NoError(t, err)

	entries := rec.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, kolibri.OpGetChildren, entries[0].Operation)
	assert.Equal(t, 1, entries[0].Attempts)
	assert.Contains(t, entries[0].URL, "parent=root")
	assert.Equal(t, kolibri.OpGetNodeDetails, entries[1].Operation)
	assert.Equal(t, "sample", entries[1].Source)
	assert.Equal(t, `{"id":"abc"}`, entries[1].Body)
}

func TestTruncateString_KeepsRunesWhole(t *testing.T) {
	body := `{"title":"Привет"}`
	for size := 1; size < len(body); size++ {
		got := truncateString(body, size)
		assert.True(t, utf8.ValidString(got), "size %d: %q", size, got)
		assert.True(t, strings.HasSuffix(got, "... (truncated)"))
	}
	assert.Equal(t, body, truncateString(body, len(body)))
	assert.Equal(t, "П... (truncated)", truncateString("Привет", 3))
}
