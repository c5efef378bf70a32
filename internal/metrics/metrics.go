// Package metrics exposes Prometheus counters for session intents.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the session controller reports to.
type Recorder interface {
	RecordIntent(intent, outcome string, d time.Duration)
	RecordNotification(kind string)
	SetLoading(loading bool)
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	intents       *prometheus.CounterVec
	intentLatency *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	loading       prometheus.Gauge
}

// NewCollector creates a Collector and registers it with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dermacheck_intents_total",
			Help: "Session intents completed, by intent and outcome.",
		}, []string{"intent", "outcome"}),
		intentLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dermacheck_intent_duration_seconds",
			Help:    "Time from dequeue to completion of a session intent.",
			Buckets: prometheus.DefBuckets,
		}, []string{"intent"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dermacheck_notifications_total",
			Help: "Notifications published to the UI, by kind.",
		}, []string{"kind"}),
		loading: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dermacheck_session_loading",
			Help: "1 while the session has blocking work in flight.",
		}),
	}

	reg.MustRegister(c.intents, c.intentLatency, c.notifications, c.loading)
	return c
}

func (c *Collector) RecordIntent(intent, outcome string, d time.Duration) {
	c.intents.WithLabelValues(intent, outcome).Inc()
	c.intentLatency.WithLabelValues(intent).Observe(d.Seconds())
}

func (c *Collector) RecordNotification(kind string) {
	c.notifications.WithLabelValues(kind).Inc()
}

func (c *Collector) SetLoading(loading bool) {
	if loading {
		c.loading.Set(1)
		return
	}
	c.loading.Set(0)
}

// Handler serves the metrics registered on gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordIntent(string, string, time.Duration) {}
func (Nop) RecordNotification(string)                  {}
func (Nop) SetLoading(bool)                            {}

var (
	_ Recorder = (*Collector)(nil)
	_ Recorder = Nop{}
)
