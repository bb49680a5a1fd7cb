package service

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects render service counters for the Prometheus endpoint.
type Metrics struct {
	RequestsTotal  prometheus.Counter
	FailuresTotal  prometheus.Counter
	FramesRendered prometheus.Counter
	RenderDuration prometheus.Histogram
	ActiveSessions prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// newMetrics registers the collectors once for the process; repeated
// service construction reuses them.
func newMetrics() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			RequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ucra_render_requests_total",
				Help: "Total render requests received",
			}),
			FailuresTotal: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ucra_render_failures_total",
				Help: "Total render requests that failed",
			}),
			FramesRendered: promauto.NewCounter(prometheus.CounterOpts{
				Name: "ucra_render_frames_total",
				Help: "Total audio frames rendered",
			}),
			RenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
				Name:    "ucra_render_duration_seconds",
				Help:    "Wall time per render session",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
			}),
			ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
				Name: "ucra_render_active_sessions",
				Help: "Render sessions currently streaming",
			}),
		}
	})
	return metricsInst
}

// RecordSession observes one finished session.
func (m *Metrics) RecordSession(frames int, d time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.FramesRendered.Add(float64(frames))
	m.RenderDuration.Observe(d.Seconds())
	if failed {
		m.FailuresTotal.Inc()
	}
}
