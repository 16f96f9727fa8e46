// Package metrics collects and exposes Prometheus metrics for the store,
// live queries, intents and WebSocket sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is what the repository, state and websocket layers report to.
type Recorder interface {
	ObserveStoreOp(op string, d time.Duration, err error)
	StreamOpened()
	StreamClosed()
	RecordIntent(intent string)
	RecordIntentFailure(intent string)
	ClientConnected()
	ClientDisconnected()
}

// Collector is the Prometheus-backed Recorder.
type Collector struct {
	storeOps       *prometheus.HistogramVec
	storeErrors    *prometheus.CounterVec
	liveStreams    prometheus.Gauge
	intents        *prometheus.CounterVec
	intentFailures *prometheus.CounterVec
	wsClients      prometheus.Gauge
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		storeOps: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "shoplist_store_op_duration_seconds",
			Help:    "Latency of item store operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoplist_store_op_errors_total",
			Help: "Item store operations that returned an error.",
		}, []string{"op"}),
		liveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shoplist_live_streams",
			Help: "Live query subscriptions currently open.",
		}),
		intents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoplist_intents_total",
			Help: "Intents applied by state controllers.",
		}, []string{"intent"}),
		intentFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "shoplist_intent_failures_total",
			Help: "Intents whose repository call failed.",
		}, []string{"intent"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "shoplist_websocket_clients",
			Help: "Connected WebSocket clients.",
		}),
	}

	reg.MustRegister(
		c.storeOps,
		c.storeErrors,
		c.liveStreams,
		c.intents,
		c.intentFailures,
		c.wsClients,
	)

	return c
}

func (c *Collector) ObserveStoreOp(op string, d time.Duration, err error) {
	c.storeOps.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		c.storeErrors.WithLabelValues(op).Inc()
	}
}

func (c *Collector) StreamOpened() { c.liveStreams.Inc() }
func (c *Collector) StreamClosed() { c.liveStreams.Dec() }

func (c *Collector) RecordIntent(intent string) {
	c.intents.WithLabelValues(intent).Inc()
}

func (c *Collector) RecordIntentFailure(intent string) {
	c.intentFailures.WithLabelValues(intent).Inc()
}

func (c *Collector) ClientConnected()    { c.wsClients.Inc() }
func (c *Collector) ClientDisconnected() { c.wsClients.Dec() }

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards everything. Useful in tests and when metrics are disabled.
type Nop struct{}

func (Nop) ObserveStoreOp(string, time.Duration, error) {}
func (Nop) StreamOpened()                               {}
func (Nop) StreamClosed()                               {}
func (Nop) RecordIntent(string)                         {}
func (Nop) RecordIntentFailure(string)                  {}
func (Nop) ClientConnected()                            {}
func (Nop) ClientDisconnected()                         {}
