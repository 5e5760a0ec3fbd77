// Package metrics exposes Prometheus collectors for the numbering service.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"

	"docnum/internal/domain/numbering"
)

// NumberingMetrics implements numbering.Metrics.
type NumberingMetrics struct {
	generated *prometheus.CounterVec
	failed    *prometheus.CounterVec
	duration  prometheus.Histogram
}

var _ numbering.Metrics = (*NumberingMetrics)(nil)

// NewNumberingMetrics registers the collectors with registerer
// (prometheus.DefaultRegisterer when nil).
func NewNumberingMetrics(registerer prometheus.Registerer) *NumberingMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &NumberingMetrics{
		generated: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "docnum_numbers_generated_total",
			Help: "Document numbers issued, by rule",
		}, []string{"rule_id"}),
		failed: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "docnum_generation_failures_total",
			Help: "Failed generation requests, by error code",
		}, []string{"code"}),
		duration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "docnum_generation_duration_seconds",
			Help:    "Duration of generation requests in seconds",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),
	}
}

// NumberGenerated implements numbering.Metrics.
func (m *NumberingMetrics) NumberGenerated(ruleID int64) {
	m.generated.WithLabelValues(strconv.FormatInt(ruleID, 10)).Inc()
}

// GenerationFailed implements numbering.Metrics.
func (m *NumberingMetrics) GenerationFailed(code string) {
	m.failed.WithLabelValues(code).Inc()
}

// ObserveGeneration implements numbering.Metrics.
func (m *NumberingMetrics) ObserveGeneration(d time.Duration) {
	m.duration.Observe(d.Seconds())
}

// RegisterPoolStats exposes pgxpool statistics as gauges read on scrape.
func RegisterPoolStats(registerer prometheus.Registerer, pool *pgxpool.Pool) {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	gauges := []struct {
		name string
		help string
		fn   func(*pgxpool.Stat) float64
	}{
		{"docnum_db_pool_total_conns", "Connections currently open", func(s *pgxpool.Stat) float64 { return float64(s.TotalConns()) }},
		{"docnum_db_pool_acquired_conns", "Connections currently in use", func(s *pgxpool.Stat) float64 { return float64(s.AcquiredConns()) }},
		{"docnum_db_pool_idle_conns", "Idle connections", func(s *pgxpool.Stat) float64 { return float64(s.IdleConns()) }},
		{"docnum_db_pool_max_conns", "Configured connection limit", func(s *pgxpool.Stat) float64 { return float64(s.MaxConns()) }},
	}

	for _, g := range gauges {
		fn := g.fn
		collector := prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: g.name, Help: g.help}, func() float64 {
			return fn(pool.Stat())
		})
		if err := registerer.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			panic(fmt.Sprintf("register gauge %q: %v", g.name, err))
		}
	}
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
