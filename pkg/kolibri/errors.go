package kolibri

import (
	"errors"
	"fmt"
)

// ErrNotImplemented - сервер ответил 422. Вызов считается проваленным.
var ErrNotImplemented = errors.New("kolibri: request not implemented by server (422)")

// ErrFixtureLookup - хранилище samples не смогло ответить.
// Оборачивает исходную ошибку хранилища.
var ErrFixtureLookup = errors.New("kolibri: sample lookup failed")

// ErrNoSampleStore - test mode включен, а хранилища нет.
var ErrNoSampleStore = errors.New("kolibri: test mode requires a sample store")

// MissingFixtureError - в test mode для операции нет sample,
// а TestModeDefaultEmpty выключен.
type MissingFixtureError struct {
	Operation string
	Location  string
}

func (e *MissingFixtureError) Error() string {
	return fmt.Sprintf("no sample response for %q: add one to %s or set test_mode_default_empty = true",
		e.Operation, e.Location)
}

// RetriesExhaustedError - все попытки закончились ответом 429.
type RetriesExhaustedError struct {
	Attempts int
	Last     *Response
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("kolibri: still rate limited after %d attempts", e.Attempts)
}

// ErrorType - грубая классификация ошибки для вывода в CLI.
type ErrorType int

const (
	ErrUnknown ErrorType = iota
	ErrTypeNotImplemented
	ErrTypeMissingFixture
	ErrTypeFixtureLookup
	ErrTypeRateLimit
	ErrTypeTransport
)

// String возвращает строковое представление типа ошибки.
func (e ErrorType) String() string {
	switch e {
	case ErrTypeNotImplemented:
		return "not_implemented"
	case ErrTypeMissingFixture:
		return "missing_fixture"
	case ErrTypeFixtureLookup:
		return "fixture_lookup"
	case ErrTypeRateLimit:
		return "rate_limit"
	case ErrTypeTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// ClassifyError определяет тип ошибки через errors.Is/As.
func ClassifyError(err error) ErrorType {
	var (
		missing   *MissingFixtureError
		exhausted *RetriesExhaustedError
		transport *TransportError
	)
	switch {
	case err == nil:
		return ErrUnknown
	case errors.Is(err, ErrNotImplemented):
		return ErrTypeNotImplemented
	case errors.As(err, &missing):
		return ErrTypeMissingFixture
	case errors.Is(err, ErrFixtureLookup), errors.Is(err, ErrNoSampleStore):
		return ErrTypeFixtureLookup
	case errors.As(err, &exhausted):
		return ErrTypeRateLimit
	case errors.As(err, &transport):
		return ErrTypeTransport
	default:
		return ErrUnknown
	}
}

// TransportError - сетевая ошибка попытки. Unwrap отдаёт исходную ошибку
// транспорта, так что errors.Is(err, context.DeadlineExceeded) работает.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ResponseError - ответ, который Inspect превратил в ошибку.
type ResponseError struct {
	Response *Response
	Err      error
}

func (e *ResponseError) Error() string {
	return fmt.Sprintf("status %d: %v", e.Response.StatusCode, e.Err)
}

func (e *ResponseError) Unwrap() error {
	return e.Err
}

// responseOf достаёт ответ для журнала: сам resp или ответ из ошибки.
func responseOf(resp *Response, err error) *Response {
	if resp != nil {
		return resp
	}
	var (
		respErr   *ResponseError
		exhausted *RetriesExhaustedError
	)
	switch {
	case errors.As(err, &respErr):
		return respErr.Response
	case errors.As(err, &exhausted):
		return exhausted.Last
	default:
		return nil
	}
}
