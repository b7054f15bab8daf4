// Package metrics holds the Prometheus collectors for editor sessions.
package metrics

import (
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Registry holds all metrics for the application
type Registry struct {
	// Editor Metrics
	CommandsTotal     *prometheus.CounterVec
	GesturesTotal     *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
	ChainNodes        *prometheus.GaugeVec
	ChainEdges        *prometheus.GaugeVec
	VerdictsTotal     *prometheus.CounterVec

	// Persistence Metrics
	SavesTotal   *prometheus.CounterVec
	SaveDuration prometheus.Histogram

	// Streaming Metrics
	EventsPublishedTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{registry: prometheus.NewRegistry()}
	r.initEditorMetrics()
	r.initPersistenceMetrics()
	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Snapshot flattens every counter and gauge into "name{label=value,...}"
// keys. Histograms contribute their sample count under name_count.
func (r *Registry) Snapshot() (map[string]float64, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}
	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName() + labelSuffix(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				out[mf.GetName()+"_count"+labelSuffix(m.GetLabel())] = float64(m.GetHistogram().GetSampleCount())
			}
		}
	}
	return out, nil
}

func labelSuffix(pairs []*dto.LabelPair) string {
	if len(pairs) == 0 {
		return ""
	}
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, p.GetName()+"="+p.GetValue())
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

func (r *Registry) initEditorMetrics() {
	r.CommandsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "attackchain_editor_commands_total",
			Help: "Total number of editor commands",
		},
		[]string{"command", "result"}, // applied, rejected
	)

	r.GesturesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "attackchain_editor_gestures_total",
			Help: "Total number of pointer gestures entered",
		},
		[]string{"gesture"},
	)

	r.RecomputeDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attackchain_editor_recompute_duration_seconds",
			Help:    "Time spent recomputing stats and verdict after a commit",
			Buckets: []float64{0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
	)

	r.ChainNodes = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attackchain_chain_nodes",
			Help: "Number of nodes in an open chain",
		},
		[]string{"chain_id"},
	)

	r.ChainEdges = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "attackchain_chain_edges",
			Help: "Number of edges in an open chain",
		},
		[]string{"chain_id"},
	)

	r.VerdictsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "attackchain_editor_verdicts_total",
			Help: "Verdicts produced by recomputation",
		},
		[]string{"verdict"}, // valid, warning, error
	)

	r.EventsPublishedTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "attackchain_events_published_total",
			Help: "Change events published to the hub",
		},
		[]string{"kind"},
	)
}

func (r *Registry) initPersistenceMetrics() {
	r.SavesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "attackchain_saves_total",
			Help: "Chain saves by trigger and result",
		},
		[]string{"trigger", "result"}, // manual/autosave, ok/error
	)

	r.SaveDuration = promauto.With(r.registry).NewHistogram(
		prometheus.HistogramOpts{
			Name:    "attackchain_save_duration_seconds",
			Help:    "Chain save latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
}
