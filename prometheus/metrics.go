package prometheus

import (
	"errors"
	"fmt"

	"github.com/abczzz13/unxf"
	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	resolutionsMetricName    = "unxf_resolutions_total"
	securityEventsMetricName = "unxf_security_events_total"
)

// PrometheusMetrics is a Prometheus-backed implementation of unxf.Metrics.
type PrometheusMetrics struct {
	resolutions    *prom.CounterVec
	securityEvents *prom.CounterVec
}

var _ unxf.Metrics = (*PrometheusMetrics)(nil)

// WithMetrics returns a unxf option that installs Prometheus-backed metrics
// using prom.DefaultRegisterer.
func WithMetrics() unxf.Option {
	return withMetricsFactory(New)
}

// WithRegisterer returns a unxf option that installs Prometheus-backed
// metrics using the provided registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used.
func WithRegisterer(registerer prom.Registerer) unxf.Option {
	return withMetricsFactory(func() (*PrometheusMetrics, error) {
		return NewWithRegisterer(registerer)
	})
}

// withMetricsFactory adapts a PrometheusMetrics constructor into a lazy
// unxf.WithMetricsFactory option, so collectors are only registered once the
// rest of the configuration validated.
func withMetricsFactory(factory func() (*PrometheusMetrics, error)) unxf.Option {
	return unxf.WithMetricsFactory(func() (unxf.Metrics, error) {
		metrics, err := factory()
		if err != nil {
			return nil, err
		}
		return metrics, nil
	})
}

// New creates PrometheusMetrics and registers its collectors on
// prom.DefaultRegisterer.
func New() (*PrometheusMetrics, error) {
	return NewWithRegisterer(prom.DefaultRegisterer)
}

// NewWithRegisterer creates PrometheusMetrics and registers its collectors on
// the given registerer.
//
// If registerer is nil, prom.DefaultRegisterer is used. If the metrics are
// already registered, existing compatible collectors are reused.
func NewWithRegisterer(registerer prom.Registerer) (*PrometheusMetrics, error) {
	if registerer == nil {
		registerer = prom.DefaultRegisterer
	}

	resolutionsCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: resolutionsMetricName,
			Help: "Total number of forwarding chains resolved, by status (trusted, untrusted, broken).",
		},
		[]string{"status"},
	)
	securityEventsCollector := prom.NewCounterVec(
		prom.CounterOpts{
			Name: securityEventsMetricName,
			Help: "Security-related events during forwarding chain resolution, labeled by event.",
		},
		[]string{"event"},
	)

	resolutions, err := registerCounterVec(registerer, resolutionsCollector, resolutionsMetricName)
	if err != nil {
		return nil, err
	}

	securityEvents, err := registerCounterVec(registerer, securityEventsCollector, securityEventsMetricName)
	if err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		resolutions:    resolutions,
		securityEvents: securityEvents,
	}, nil
}

func registerCounterVec(registerer prom.Registerer, collector *prom.CounterVec, metricName string) (*prom.CounterVec, error) {
	if err := registerer.Register(collector); err != nil {
		var alreadyRegistered prom.AlreadyRegisteredError
		if errors.As(err, &alreadyRegistered) {
			existing, ok := alreadyRegistered.ExistingCollector.(*prom.CounterVec)
			if ok {
				return existing, nil
			}
			return nil, fmt.Errorf("metric %q already registered with incompatible collector type %T", metricName, alreadyRegistered.ExistingCollector)
		}

		return nil, fmt.Errorf("register metric %q: %w", metricName, err)
	}

	return collector, nil
}

// RecordResolution increments unxf_resolutions_total for the provided status.
func (m *PrometheusMetrics) RecordResolution(status string) {
	m.resolutions.WithLabelValues(status).Inc()
}

// RecordSecurityEvent increments unxf_security_events_total for the provided
// event label.
func (m *PrometheusMetrics) RecordSecurityEvent(event string) {
	m.securityEvents.WithLabelValues(event).Inc()
}
