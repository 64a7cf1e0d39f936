package kolibri

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"
)

// File - вложение для multipart запроса.
type File struct {
	Name        string // Имя файла в Content-Disposition
	ContentType string // Пусто - application/octet-stream
	Content     []byte
}

// Request описывает параметры HTTP запроса, который уходит в Dispatch.
type Request struct {
	Method  string
	URL     string
	JSON    any                // Тело в JSON, если нет Form и Files
	Form    url.Values         // Form data, имеет приоритет над JSON
	Headers http.Header
	Files   map[string]File    // Поле формы → файл
	Params  url.Values         // Query параметры, дописываются к URL

	Timeout        time.Duration // На одну попытку
	AllowRedirects bool
}

// Clone возвращает копию с независимыми map.
func (r *Request) Clone() *Request {
	cp := *r
	cp.Headers = r.Headers.Clone()
	if r.Form != nil {
		cp.Form = cloneValues(r.Form)
	}
	if r.Params != nil {
		cp.Params = cloneValues(r.Params)
	}
	if r.Files != nil {
		cp.Files = make(map[string]File, len(r.Files))
		for k, v := range r.Files {
			cp.Files[k] = v
		}
	}
	return &cp
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// FullURL возвращает URL с дописанными Params.
func (r *Request) FullURL() (string, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return "", fmt.Errorf("invalid url: %w", err)
	}
	if len(r.Params) > 0 {
		q := u.Query()
		for k, vs := range r.Params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// encodeBody собирает тело запроса.
//
// Приоритет: Files (multipart вместе с Form полями) → Form (urlencoded) → JSON.
func (r *Request) encodeBody() (io.Reader, string, error) {
	switch {
	case len(r.Files) > 0:
		return r.encodeMultipart()
	case len(r.Form) > 0:
		return strings.NewReader(r.Form.Encode()), "application/x-www-form-urlencoded", nil
	case r.JSON != nil:
		data, err := json.Marshal(r.JSON)
		if err != nil {
			return nil, "", fmt.Errorf("marshal body: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	default:
		return nil, "", nil
	}
}

func (r *Request) encodeMultipart() (io.Reader, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, vs := range r.Form {
		for _, v := range vs {
			if err := mw.WriteField(k, v); err != nil {
				return nil, "", fmt.Errorf("write form field %s: %w", k, err)
			}
		}
	}

	// Детерминированный порядок частей
	fields := make([]string, 0, len(r.Files))
	for field := range r.Files {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		f := r.Files[field]
		name := f.Name
		if name == "" {
			name = field
		}
		ct := f.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}

		h := make(map[string][]string)
		h["Content-Disposition"] = []string{
			fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name),
		}
		h["Content-Type"] = []string{ct}

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", field, err)
		}
		if _, err := part.Write(f.Content); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", field, err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return &buf, mw.FormDataContentType(), nil
}

// send выполняет одну попытку запроса и полностью вычитывает тело.
func (c *Client) send(ctx context.Context, req *Request, requestID string) (*Response, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	target, err := req.FullURL()
	if err != nil {
		return nil, err
	}

	body, contentType, err := req.encodeBody()
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, strings.ToUpper(req.Method), target, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	for k, vs := range req.Headers {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	if requestID != "" {
		httpReq.Header.Set("X-Request-ID", requestID)
	}

	creds := c.cfg.Credentials
	switch {
	case creds.Token != "":
		httpReq.Header.Set("Authorization", "Token "+creds.Token)
	case creds.Username != "":
		httpReq.SetBasicAuth(creds.Username, creds.Password)
	}

	doer := c.httpClient
	if !req.AllowRedirects {
		doer = c.noRedirect
	}

	resp, err := doer.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Method: httpReq.Method, URL: target, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: httpReq.Method, URL: target, Err: fmt.Errorf("read body: %w", err)}
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       data,
		Request:    req,
		ReceivedAt: time.Now(),
	}, nil
}
