package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusAck    = "ack"
	StatusReject = "reject"
)

// IngestMetrics captures per-item pipeline signals. All methods are safe on a nil receiver.
type IngestMetrics struct {
	items          *prometheus.CounterVec
	itemDuration   *prometheus.HistogramVec
	outcomes       *prometheus.CounterVec
	historyEntries *prometheus.CounterVec
	retries        *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	staleListings  *prometheus.GaugeVec
}

func NewIngestMetrics(registerer prometheus.Registerer, cfg Config) (*IngestMetrics, error) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "matval"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	m := &IngestMetrics{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "matval_ingest_items_total",
			Help:        "Raw items processed by store, status and rejection reason.",
			ConstLabels: constLabels,
		}, []string{"store", "status", "reason"}),
		itemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "matval_ingest_item_duration_seconds",
			Help:        "Time spent normalizing and writing one raw item.",
			Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			ConstLabels: constLabels,
		}, []string{"store"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "matval_ingest_listing_outcomes_total",
			Help:        "Listing writes by outcome (created, updated, unchanged).",
			ConstLabels: constLabels,
		}, []string{"store", "outcome"}),
		historyEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "matval_ingest_history_entries_total",
			Help:        "Listing history entries recorded on material changes.",
			ConstLabels: constLabels,
		}, []string{"store"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "matval_ingest_retries_total",
			Help:        "Item transactions retried after a storage error.",
			ConstLabels: constLabels,
		}, []string{"store"}),
		decodeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "matval_ingest_decode_errors_total",
			Help:        "Input lines that could not be decoded into a raw item.",
			ConstLabels: constLabels,
		}, []string{"store"}),
		staleListings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "matval_ingest_stale_listings",
			Help:        "Listings not seen during the latest run of a store.",
			ConstLabels: constLabels,
		}, []string{"store"}),
	}

	collectors := []prometheus.Collector{
		m.items, m.itemDuration, m.outcomes, m.historyEntries, m.retries, m.decodeErrors, m.staleListings,
	}
	for _, c := range collectors {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *IngestMetrics) ObserveItem(store, status, reason string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.items.WithLabelValues(store, status, reason).Inc()
	m.itemDuration.WithLabelValues(store).Observe(elapsed.Seconds())
}

func (m *IngestMetrics) ObserveOutcome(store, outcome string, historyRecorded bool) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(store, outcome).Inc()
	if historyRecorded {
		m.historyEntries.WithLabelValues(store).Inc()
	}
}

func (m *IngestMetrics) IncRetry(store string) {
	if m == nil {
		return
	}
	m.retries.WithLabelValues(store).Inc()
}

func (m *IngestMetrics) IncDecodeError(store string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(store).Inc()
}

func (m *IngestMetrics) SetStaleListings(store string, count int64) {
	if m == nil {
		return
	}
	m.staleListings.WithLabelValues(store).Set(float64(count))
}
