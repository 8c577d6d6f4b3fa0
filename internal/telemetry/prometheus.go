package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric keys published by the replay.
const (
	KeyEventsProcessed = "events_processed"
	KeyThreatChanges   = "threat_changes"
	KeyUnmodeled       = "unmodeled_events"
	KeyEnemiesEngaged  = "enemies_engaged"
	KeyStreamClients   = "stream_clients"
	KeyStreamDropped   = "stream_dropped"
)

// Prometheus implements Metrics on a private registry: Add feeds a counter
// and Store a gauge, both labelled by key.
type Prometheus struct {
	registry *prometheus.Registry
	counters *prometheus.CounterVec
	gauges   *prometheus.GaugeVec
}

// NewPrometheus registers the collectors under namespace.
func NewPrometheus(namespace string) *Prometheus {
	registry := prometheus.NewRegistry()
	counters := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "events_total",
		Help:      "Monotonic replay counters by key.",
	}, []string{"key"})
	gauges := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "value",
		Help:      "Last stored replay values by key.",
	}, []string{"key"})
	registry.MustRegister(counters, gauges)
	return &Prometheus{registry: registry, counters: counters, gauges: gauges}
}

func (p *Prometheus) Add(key string, delta uint64) {
	if p == nil {
		return
	}
	p.counters.WithLabelValues(key).Add(float64(delta))
}

func (p *Prometheus) Store(key string, value uint64) {
	if p == nil {
		return
	}
	p.gauges.WithLabelValues(key).Set(float64(value))
}

// Handler serves the registry in the Prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}
