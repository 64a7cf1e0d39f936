package kolibri

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// acceptJSON - заголовок Accept всех verb запросов.
const acceptJSON = "application/json; charset=utf-8"

// RequestOptions - необязательные параметры verb запроса.
type RequestOptions struct {
	Form    url.Values
	JSON    any
	Files   map[string]File
	Params  url.Values
	Headers http.Header

	// Timeout одной попытки. 0 - Config.Timeout.
	Timeout time.Duration
	// NoRedirects отключает переход по редиректам.
	NoRedirects bool
}

// Get выполняет GET запрос: Dispatch, затем Inspect.
func (c *Client) Get(ctx context.Context, rawURL string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodGet, rawURL, opts)
}

// Put выполняет PUT запрос.
func (c *Client) Put(ctx context.Context, rawURL string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPut, rawURL, opts)
}

// Post выполняет POST запрос.
func (c *Client) Post(ctx context.Context, rawURL string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodPost, rawURL, opts)
}

// Delete выполняет DELETE запрос.
func (c *Client) Delete(ctx context.Context, rawURL string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, http.MethodDelete, rawURL, opts)
}

// do - общий путь verb запросов. Относительный URL склеивается с BaseURL.
//
// Вызовы вне Execute пишутся в журнал отдельно, вызовы внутри операции
// журналирует сам Execute.
func (c *Client) do(ctx context.Context, method, rawURL string, opts RequestOptions) (*Response, error) {
	target, err := c.resolve(rawURL)
	if err != nil {
		return nil, err
	}

	headers := opts.Headers.Clone()
	if headers == nil {
		headers = make(http.Header)
	}
	headers.Set("Accept", acceptJSON)

	req := &Request{
		Method:         method,
		URL:            target,
		JSON:           opts.JSON,
		Form:           opts.Form,
		Headers:        headers,
		Files:          opts.Files,
		Params:         opts.Params,
		Timeout:        opts.Timeout,
		AllowRedirects: !opts.NoRedirects,
	}

	started := time.Now()
	resp, err := c.Dispatch(ctx, req)
	if err == nil {
		resp, err = c.Inspect(resp)
	}

	if _, inOperation := operationFrom(ctx); !inOperation {
		c.record(Exchange{
			Operation: method + " " + target,
			Source:    SourceLive,
			Request:   req,
			Response:  responseOf(resp, err),
			Err:       err,
			StartedAt: started,
			Duration:  time.Since(started),
		})
	}
	return resp, err
}
