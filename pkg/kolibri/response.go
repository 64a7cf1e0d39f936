package kolibri

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// Response - полученный (или синтезированный из sample) ответ.
//
// После получения не меняется. JSON разбирается лениво при первом обращении.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// Request - запрос, который привёл к этому ответу. nil для samples.
	Request *Request
	// Attempts - сколько попыток сделал Dispatch (0 для samples).
	Attempts int
	// Waits - паузы после каждого 429.
	Waits []time.Duration
	// FromSample - ответ синтезирован из samples.Store.
	FromSample bool
	ReceivedAt time.Time

	jsonOnce  sync.Once
	jsonValue any
	jsonErr   error
}

// OK сообщает, что статус в диапазоне 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON возвращает разобранное тело. Результат кешируется.
func (r *Response) JSON() (any, error) {
	r.jsonOnce.Do(func() {
		if err := json.Unmarshal(r.Body, &r.jsonValue); err != nil {
			r.jsonErr = fmt.Errorf("decode response body: %w", err)
		}
	})
	return r.jsonValue, r.jsonErr
}

// Decode разбирает тело в dest.
func (r *Response) Decode(dest any) error {
	if err := json.Unmarshal(r.Body, dest); err != nil {
		return fmt.Errorf("decode response body: %w", err)
	}
	return nil
}

// sampleResponse синтезирует успешный ответ из sample.
// Пустой sample превращается в JSON null.
func sampleResponse(sample json.RawMessage) (*Response, error) {
	body := []byte(sample)
	if len(body) == 0 {
		body = []byte("null")
	}

	var value any
	if err := json.Unmarshal(body, &value); err != nil {
		return nil, fmt.Errorf("sample is not valid json: %w", err)
	}

	resp := &Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       body,
		FromSample: true,
		ReceivedAt: time.Now(),
	}
	// JSON() отдаёт значение sample напрямую
	resp.jsonOnce.Do(func() { resp.jsonValue = value })
	return resp, nil
}
