package kolibri

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ilkoid/kolibri-sdk/pkg/utils"
)

// Dispatch выполняет запрос с обработкой 429.
//
// Делает до Config.Retries попыток. На 429 ждёт extras.wait_seconds из тела
// ответа (или Config.DefaultWait, если поле не разобралось) и повторяет.
// Любой другой статус возвращается сразу, без повторов.
//
// Если все попытки закончились 429, возвращается *RetriesExhaustedError
// с последним ответом. Сетевые ошибки не повторяются и возвращаются
// как *TransportError.
func (c *Client) Dispatch(ctx context.Context, req *Request) (*Response, error) {
	if req.Timeout == 0 {
		req = req.Clone()
		req.Timeout = c.cfg.Timeout
	}
	method := strings.ToUpper(req.Method)
	requestID := c.newID()

	var (
		last  *Response
		waits []time.Duration
	)

	for attempt := 1; attempt <= c.cfg.Retries; attempt++ {
		// 1. Клиентский лимитер (если включен)
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("rate limiter wait: %w", err)
			}
		}

		resp, err := c.send(ctx, req, requestID)
		if err != nil {
			c.metrics.requests.WithLabelValues(method, "error").Inc()
			utils.Error("kolibri request failed",
				"method", method, "url", req.URL, "attempt", attempt, "error", err)
			return nil, err
		}
		resp.Attempts = attempt
		resp.Waits = waits
		last = resp

		c.metrics.requests.WithLabelValues(method, strconv.Itoa(resp.StatusCode)).Inc()

		if resp.StatusCode != http.StatusTooManyRequests {
			utils.Debug("kolibri response",
				"method", method, "url", req.URL, "status", resp.StatusCode, "attempt", attempt)
			return resp, nil
		}

		// 2. Обработка 429 (Too Many Requests)
		c.metrics.rateLimited.Inc()
		if attempt == c.cfg.Retries {
			break
		}

		wait := c.waitFor(resp.Body)
		if !c.cfg.QuietMode {
			fmt.Fprintln(c.out, strconv.Quote(string(resp.Body)))
			fmt.Fprintln(c.out, "Waiting for throttle...")
			fmt.Fprintf(c.out, "Sleeping for %d seconds\n", int(wait/time.Second))
		}
		utils.Warn("kolibri rate limited",
			"url", req.URL, "attempt", attempt, "wait", wait.String())

		c.metrics.waitSeconds.Observe(wait.Seconds())
		waits = append(waits, wait)

		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("waiting for throttle: %w", err)
		}
	}

	utils.Error("kolibri retries exhausted", "url", req.URL, "attempts", c.cfg.Retries)
	return nil, &RetriesExhaustedError{Attempts: c.cfg.Retries, Last: last}
}

// waitFor вычисляет паузу из тела 429 ответа.
//
// Ожидается {"extras": {"wait_seconds": N}}, где N - число или строка с числом.
// Дробная часть отбрасывается. Значения, не влезающие в time.Duration,
// и всё остальное дают Config.DefaultWait.
func (c *Client) waitFor(body []byte) time.Duration {
	var payload struct {
		Extras struct {
			WaitSeconds json.RawMessage `json:"wait_seconds"`
		} `json:"extras"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return c.cfg.DefaultWait
	}

	seconds, ok := parseWaitSeconds(payload.Extras.WaitSeconds)
	if !ok {
		return c.cfg.DefaultWait
	}
	return time.Duration(seconds) * time.Second
}

// maxWaitSeconds - граница, после которой секунды переполняют time.Duration.
const maxWaitSeconds = float64(math.MaxInt64 / int64(time.Second))

func parseWaitSeconds(raw json.RawMessage) (int64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var num float64
	if err := json.Unmarshal(raw, &num); err != nil {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return 0, false
		}
		num, err = strconv.ParseFloat(strings.TrimSpace(str), 64)
		if err != nil {
			return 0, false
		}
	}

	if math.IsNaN(num) || math.IsInf(num, 0) || num < 0 || num >= maxWaitSeconds {
		return 0, false
	}
	return int64(num), true
}
