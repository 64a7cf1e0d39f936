package kolibri

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ilkoid/kolibri-sdk/pkg/samples"
	"github.com/ilkoid/kolibri-sdk/pkg/utils"
)

// Operation - именованная доменная операция.
//
// Name - ключ sample в хранилище (suite "samples"). Run - живая реализация,
// которая вызывается вне test mode.
type Operation struct {
	Name string
	Run  func(ctx context.Context) (*Response, error)
}

// Source - откуда взялся ответ операции.
type Source string

const (
	SourceLive         Source = "live"
	SourceSample       Source = "sample"
	SourceLiveFallback Source = "live-fallback" // lookup упал с ErrKeyNotFound, политика live
)

// Exchange - запись журнала об одном вызове.
type Exchange struct {
	ID        string
	Operation string
	Source    Source
	Request   *Request
	Response  *Response
	Attempts  int
	Waits     []time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

// Journal получает Exchange после каждого вызова.
// Реализация должна быть безопасной для конкурентного использования.
type Journal interface {
	Record(e Exchange)
}

type operationKey struct{}

func withOperation(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, operationKey{}, name)
}

func operationFrom(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(operationKey{}).(string)
	return name, ok
}

// Execute запускает операцию.
//
// Вне test mode вызывается op.Run. В test mode ответ берётся из samples.Store
// и проходит через Inspect так же, как живой:
//   - sample нет (или он пустой) и TestModeDefaultEmpty выключен - *MissingFixtureError
//   - sample нет, TestModeDefaultEmpty включен - 200 с телом null
//   - хранилище вернуло ErrKeyNotFound - решает Config.LookupErrorPolicy
//   - прочие ошибки хранилища - ErrFixtureLookup
func (c *Client) Execute(ctx context.Context, op Operation) (*Response, error) {
	ctx = withOperation(ctx, op.Name)
	started := time.Now()

	if !c.cfg.TestMode {
		return c.runLive(ctx, op, SourceLive, started)
	}

	if c.store == nil {
		return nil, fmt.Errorf("%s: %w", op.Name, ErrNoSampleStore)
	}

	sample, found, err := c.store.Lookup(ctx, samples.DefaultSuite, op.Name)
	if err != nil {
		if errors.Is(err, samples.ErrKeyNotFound) && c.cfg.LookupErrorPolicy == LookupErrorLive {
			c.metrics.lookups.WithLabelValues(op.Name, "fallback").Inc()
			utils.Warn("sample lookup failed, falling back to live request",
				"operation", op.Name, "store", c.store.Location(), "error", err)
			return c.runLive(ctx, op, SourceLiveFallback, started)
		}

		c.metrics.lookups.WithLabelValues(op.Name, "error").Inc()
		err = fmt.Errorf("%w: %s: %w", ErrFixtureLookup, op.Name, err)
		c.record(Exchange{Operation: op.Name, Source: SourceSample, Err: err, StartedAt: started, Duration: time.Since(started)})
		return nil, err
	}

	if !found || samples.IsEmpty(sample) {
		if !c.cfg.TestModeDefaultEmpty {
			c.metrics.lookups.WithLabelValues(op.Name, "missing").Inc()
			err := &MissingFixtureError{Operation: op.Name, Location: c.store.Location()}
			c.record(Exchange{Operation: op.Name, Source: SourceSample, Err: err, StartedAt: started, Duration: time.Since(started)})
			return nil, err
		}
		c.metrics.lookups.WithLabelValues(op.Name, "default_empty").Inc()
	} else {
		c.metrics.lookups.WithLabelValues(op.Name, "hit").Inc()
	}

	resp, err := sampleResponse(sample)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrFixtureLookup, op.Name, err)
		c.record(Exchange{Operation: op.Name, Source: SourceSample, Err: err, StartedAt: started, Duration: time.Since(started)})
		return nil, err
	}

	utils.Debug("serving sample response", "operation", op.Name, "store", c.store.Location())

	result, err := c.Inspect(resp)
	c.record(Exchange{
		Operation: op.Name,
		Source:    SourceSample,
		Response:  resp,
		Err:       err,
		StartedAt: started,
		Duration:  time.Since(started),
	})
	return result, err
}

func (c *Client) runLive(ctx context.Context, op Operation, source Source, started time.Time) (*Response, error) {
	resp, err := op.Run(ctx)

	raw := responseOf(resp, err)
	if err == nil && c.cfg.RecordSamples {
		c.capture(ctx, op.Name, resp)
	}

	e := Exchange{
		Operation: op.Name,
		Source:    source,
		Response:  raw,
		Err:       err,
		StartedAt: started,
		Duration:  time.Since(started),
	}
	if raw != nil {
		e.Request = raw.Request
	}
	c.record(e)

	return resp, err
}

// capture сохраняет успешный JSON ответ как sample для последующего test mode.
// Ошибки записи только логируются.
func (c *Client) capture(ctx context.Context, name string, resp *Response) {
	if resp == nil || !resp.OK() || !json.Valid(resp.Body) {
		return
	}
	w, ok := c.store.(samples.Writer)
	if !ok {
		utils.Warn("sample store is not writable, skipping capture", "operation", name)
		return
	}
	if err := w.Save(ctx, samples.DefaultSuite, name, json.RawMessage(resp.Body)); err != nil {
		utils.Warn("failed to record sample", "operation", name, "error", err)
		return
	}
	utils.Debug("sample recorded", "operation", name, "store", c.store.Location())
}

func (c *Client) record(e Exchange) {
	if c.journal == nil {
		return
	}
	if e.ID == "" {
		e.ID = c.newID()
	}
	if e.Response != nil {
		e.Attempts = e.Response.Attempts
		e.Waits = e.Response.Waits
		if e.Request == nil {
			e.Request = e.Response.Request
		}
	}
	c.journal.Record(e)
}
