// Package metrics exposes ingestion counters in the Prometheus text format.
package metrics

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OtherProvider labels any provider outside the known set.
const OtherProvider = "other"

var knownProviders = map[string]struct{}{
	"gps":     {},
	"network": {},
	"fused":   {},
	"passive": {},
}

// ProviderLabel maps a client-supplied provider onto a fixed label set.
func ProviderLabel(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	if _, ok := knownProviders[p]; ok {
		return p
	}
	return OtherProvider
}

// Metrics is safe to use as a nil pointer; every method is then a no-op.
type Metrics struct {
	registry      *prometheus.Registry
	fixesAccepted *prometheus.CounterVec
	fixesRejected prometheus.Counter
	forwards      *prometheus.CounterVec
}

// New builds a private registry so several servers can live in one process.
// stored reports the current history size at scrape time.
func New(stored func() int) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		fixesAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gps_fixes_accepted_total",
			Help: "GPS fixes accepted and stored, by provider (gps, network, fused, passive, other).",
		}, []string{"provider"}),
		fixesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gps_fixes_rejected_total",
			Help: "GPS reports rejected for missing coordinates.",
		}),
		forwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gps_webhook_forwards_total",
			Help: "Webhook delivery attempts, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.fixesAccepted,
		m.fixesRejected,
		m.forwards,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if stored != nil {
		m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "gps_history_size",
			Help: "Fixes currently held in the in-memory history.",
		}, func() float64 { return float64(stored()) }))
	}
	return m
}

func (m *Metrics) FixAccepted(provider string) {
	if m == nil {
		return
	}
	m.fixesAccepted.WithLabelValues(ProviderLabel(provider)).Inc()
}

func (m *Metrics) FixRejected() {
	if m == nil {
		return
	}
	m.fixesRejected.Inc()
}

// ForwardResult counts one webhook attempt; a nil err is a success.
func (m *Metrics) ForwardResult(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.forwards.WithLabelValues(result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry over Fiber.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
