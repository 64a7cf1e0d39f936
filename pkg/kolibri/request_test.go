package kolibri

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/ilkoid/kolibri-sdk/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err, "base url is required")

	_, err = New(Config{BaseURL: "localhost:8080/api"})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "http://localhost:8080"})
	require.NoError(t, err)
	cfg := c.Config()
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultWait, cfg.DefaultWait)
	assert.Equal(t, LookupErrorFail, cfg.LookupErrorPolicy)
	assert.Nil(t, c.SampleStore())
	assert.NotNil(t, c.Registry())
}

func TestNewFromConfig(t *testing.T) {
	c, err := NewFromConfig(config.KolibriConfig{Timeout: "5s", DefaultWait: "2s"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, c.Config().Timeout)
	assert.Equal(t, 2*time.Second, c.Config().DefaultWait)

	_, err = NewFromConfig(config.KolibriConfig{DefaultWait: "soon"})
	assert.ErrorContains(t, err, "kolibri.default_wait")
}

func TestResolve(t *testing.T) {
	c, err := New(Config{BaseURL: "http://kolibri.local:8080/prefix/"})
	require.NoError(t, err)

	tests := map[string]string{
		"/api/content/channel":          "http://kolibri.local:8080/api/content/channel",
		"api/content/channel":           "http://kolibri.local:8080/prefix/api/content/channel",
		"https://cdn.example.org/a.mp4": "https://cdn.example.org/a.mp4",
	}
	for ref, want := range tests {
		got, err := c.resolve(ref)
		require.NoError(t, err)
		assert.Equal(t, want, got, ref)
	}
}

type capturedRequest struct {
	contentType string
	body        string
	form        url.Values
	files       map[string]string
}

func captureServer(t *testing.T) (*httptest.Server, *capturedRequest) {
	t.Helper()
	got := &capturedRequest{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.contentType = r.Header.Get("Content-Type")
		switch {
		case r.Header.Get("Content-Type") == "application/x-www-form-urlencoded":
			assert.NoError(t, r.ParseForm())
			got.form = r.PostForm
		case strings.HasPrefix(got.contentType, "multipart/"):
			if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
				return
			}
			got.form = url.Values(r.MultipartForm.Value)
			got.files = make(map[string]string)
			for field, headers := range r.MultipartForm.File {
				f, err := headers[0].Open()
				if !assert.NoError(t, err) {
					continue
				}
				data, _ := io.ReadAll(f)
				f.Close()
				got.files[field] = headers[0].Filename + ":" + string(data)
			}
		default:
			data, _ := io.ReadAll(r.Body)
			got.body = string(data)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestPost_JSONBody(t *testing.T) {
	srv, got := captureServer(t)
	env := newTestClient(t, srv.URL, Config{QuietMode: true})

	_, err := env.client.Post(context.Background(), "/api/x", RequestOptions{JSON: map[string]any{"title": "Intro"}})
	require.NoError(t, err)

	assert.Equal(t, "application/json", got.contentType)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(got.body), &decoded))
	assert.Equal(t, "Intro", decoded["title"])
}

func TestPut_FormWinsOverJSON(t *testing.T) {
	srv, got := captureServer(t)
	env := newTestClient(t, srv.URL, Config{QuietMode: true})

	_, err := env.client.Put(context.Background(), "/api/x", RequestOptions{
		Form: url.Values{"title": {"form"}},
		JSON: map[string]any{"title": "json"},
	})
	require.NoError(t, err)

	assert.Equal(t, "application/x-www-form-urlencoded", got.contentType)
	assert.Equal(t, "form", got.form.Get("title"))
}

func TestPost_FilesAreMultipart(t *testing.T) {
	srv, got := captureServer(t)
	env := newTestClient(t, srv.URL, Config{QuietMode: true})

	_, err := env.client.Post(context.Background(), "/api/upload", RequestOptions{
		Form:  url.Values{"channel": {"c1"}},
		Files: map[string]File{"file": {Name: "a.txt", Content: []byte("hello")}},
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", got.form.Get("channel"))
	assert.Equal(t, "a.txt:hello", got.files["file"])
}

func TestDelete_Method(t *testing.T) {
	var method string
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		method = r.Method
		return http.StatusNoContent, nil
	})
	env := newTestClient(t, srv.URL, Config{QuietMode: true})

	resp, err := env.client.Delete(context.Background(), "/api/x/1", RequestOptions{})
	require.NoError(t, err)
	assert.True(t, resp.OK())
	assert.Equal(t, http.MethodDelete, method)

	// Прямые verb вызовы тоже попадают в журнал
	entries := env.journal.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "DELETE "+srv.URL+"/api/x/1", entries[0].Operation)
}

func TestCredentials(t *testing.T) {
	var auth string
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		auth = r.Header.Get("Authorization")
		return http.StatusOK, `{}`
	})

	env := newTestClient(t, srv.URL, Config{QuietMode: true, Credentials: Credentials{Token: "t0k"}})
	_, err := env.client.Get(context.Background(), "/", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Token t0k", auth)

	env = newTestClient(t, srv.URL, Config{QuietMode: true, Credentials: Credentials{Username: "admin", Password: "pw"}})
	_, err = env.client.Get(context.Background(), "/", RequestOptions{})
	require.NoError(t, err)
	assert.Contains(t, auth, "Basic ")
}

func TestParamsMergeWithURLQuery(t *testing.T) {
	var query url.Values
	srv := jsonServer(t, func(r *http.Request) (int, any) {
		query = r.URL.Query()
		return http.StatusOK, `{}`
	})
	env := newTestClient(t, srv.URL, Config{QuietMode: true})

	_, err := env.client.Get(context.Background(), "/api?kind=video", RequestOptions{Params: url.Values{"parent": {"p1"}}})
	require.NoError(t, err)
	assert.Equal(t, "video", query.Get("kind"))
	assert.Equal(t, "p1", query.Get("parent"))
}

func TestNoRedirects(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/old" {
			http.Redirect(w, r, "/new", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	env := newTestClient(t, srv.URL, Config{QuietMode: true})

	resp, err := env.client.Get(context.Background(), "/old", RequestOptions{NoRedirects: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)

	resp, err = env.client.Get(context.Background(), "/old", RequestOptions{})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRequestClone(t *testing.T) {
	req := &Request{Headers: http.Header{"A": {"1"}}, Params: url.Values{"p": {"1"}}}
	cp := req.Clone()
	cp.Headers.Set("A", "2")
	cp.Params.Set("p", "2")
	assert.Equal(t, "1", req.Headers.Get("A"))
	assert.Equal(t, "1", req.Params.Get("p"))
}
