package kolibri

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metrics - Prometheus метрики клиента.
//
//   - kolibri_requests_total{method,code}: попытки запросов ("error" - сетевая ошибка)
//   - kolibri_rate_limited_total: ответы 429
//   - kolibri_rate_limit_wait_seconds: паузы перед повтором
//   - kolibri_sample_lookups_total{operation,outcome}: обращения к samples в test mode
type metrics struct {
	requests    *prometheus.CounterVec
	rateLimited prometheus.Counter
	waitSeconds prometheus.Histogram
	lookups     *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kolibri_requests_total",
				Help: "HTTP attempts sent to the Kolibri API by method and status code.",
			},
			[]string{"method", "code"},
		),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kolibri_rate_limited_total",
			Help: "Responses with status 429.",
		}),
		// Buckets: 1s .. 5m
		waitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kolibri_rate_limit_wait_seconds",
			Help:    "Waits before retrying a rate limited request.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		lookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "kolibri_sample_lookups_total",
				Help: "Sample store lookups in test mode by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		),
	}

	for _, c := range []prometheus.Collector{m.requests, m.rateLimited, m.waitSeconds, m.lookups} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}
