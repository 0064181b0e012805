package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns the Prometheus registry and the collectors fed by the
// realtime gateway and the auth handlers. It satisfies realtime.Stats and
// authapi.Stats.
type Metrics struct {
	reg *prometheus.Registry

	wsActive     prometheus.Gauge
	wsBroadcasts prometheus.Counter
	logins       *prometheus.CounterVec
}

// NewMetrics builds a self-contained registry with process/go collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		reg: reg,
		wsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "parley",
			Subsystem: "ws",
			Name:      "active_connections",
			Help:      "Currently open websocket sessions.",
		}),
		wsBroadcasts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "ws",
			Name:      "messages_broadcast_total",
			Help:      "Chat messages persisted and fanned out.",
		}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parley",
			Subsystem: "auth",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(m.wsActive, m.wsBroadcasts, m.logins)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// ---- realtime.Stats ----

func (m *Metrics) ConnOpened()       { m.wsActive.Inc() }
func (m *Metrics) ConnClosed()       { m.wsActive.Dec() }
func (m *Metrics) MessageBroadcast() { m.wsBroadcasts.Inc() }

// ---- authapi.Stats ----

func (m *Metrics) LoginSucceeded()   { m.logins.WithLabelValues("success").Inc() }
func (m *Metrics) LoginFailed()      { m.logins.WithLabelValues("failure").Inc() }
func (m *Metrics) LoginRateLimited() { m.logins.WithLabelValues("rate_limited").Inc() }
