package lostmatch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type clientMetrics struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newClientMetrics(reg prometheus.Registerer) (*clientMetrics, error) {
	m := &clientMetrics{
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lostmatch",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Admin API calls by operation and outcome.",
		}, []string{"operation", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lostmatch",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Admin API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
	}
	if err := registerOrReuse(reg, &m.calls); err != nil {
		return nil, err
	}
	if err := registerOrReuse(reg, &m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

// registerOrReuse registers c, or points c at the collector already registered under its name.
func registerOrReuse[T prometheus.Collector](reg prometheus.Registerer, c *T) error {
	err := reg.Register(*c)
	if err == nil {
		return nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return fmt.Errorf("lostmatch: register metric: %w", err)
	}
	existing, ok := are.ExistingCollector.(T)
	if !ok {
		return fmt.Errorf("lostmatch: metric registered with another type: %T", are.ExistingCollector)
	}
	*c = existing
	return nil
}

// observer logs and counts client calls. A nil observer does nothing.
type observer struct {
	logger  *slog.Logger
	metrics *clientMetrics
}

func newObserver(logger *slog.Logger, reg prometheus.Registerer) (*observer, error) {
	o := &observer{logger: logger}
	if reg != nil {
		m, err := newClientMetrics(reg)
		if err != nil {
			return nil, err
		}
		o.metrics = m
	}
	return o, nil
}

func (o *observer) observe(op string, start time.Time, err error) {
	if o == nil {
		return
	}
	dur := time.Since(start)

	if o.metrics != nil {
		o.metrics.calls.WithLabelValues(op, outcome(err)).Inc()
		o.metrics.duration.WithLabelValues(op).Observe(dur.Seconds())
	}
	if o.logger == nil {
		return
	}
	if err != nil {
		o.logger.Warn("call failed", "op", op, "duration", dur, "error", err)
		return
	}
	o.logger.Debug("call completed", "op", op, "duration", dur)
}

// outcome labels err by the API error code when there is one.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Code != "" {
		return apiErr.Code
	}
	return "error"
}
