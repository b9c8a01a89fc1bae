package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchAttempts *prometheus.CounterVec
	strategyWins  *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	quotesIssued  *prometheus.CounterVec
	sinkWrites    *prometheus.CounterVec
	errorsTotal   *prometheus.CounterVec
	poolTVL       *prometheus.GaugeVec
	latency       *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		fetchAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldguard_fetch_attempts_total",
				Help: "Total number of upstream fetch attempts by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		strategyWins: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldguard_strategy_wins_total",
				Help: "Total number of fetches resolved by each strategy",
			},
			[]string{"strategy"},
		),
		cacheLookups: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldguard_cache_lookups_total",
				Help: "Total number of cache lookups by entry kind and result",
			},
			[]string{"kind", "result"},
		),
		quotesIssued: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldguard_quotes_issued_total",
				Help: "Total number of insurance quotes issued by risk bucket",
			},
			[]string{"bucket"},
		),
		sinkWrites: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldguard_sink_writes_total",
				Help: "Total number of records handed to audit sinks",
			},
			[]string{"sink", "subject"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "yieldguard_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		poolTVL: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "yieldguard_pool_tvl_usd",
				Help: "Last observed TVL in USD for a pool",
			},
			[]string{"pool"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "yieldguard_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordFetchAttempt records an upstream fetch attempt outcome.
func (r *Recorder) RecordFetchAttempt(strategy, outcome string) {
	r.fetchAttempts.WithLabelValues(strategy, outcome).Inc()
}

// RecordStrategyWin records which strategy produced the served result.
func (r *Recorder) RecordStrategyWin(strategy string) {
	r.strategyWins.WithLabelValues(strategy).Inc()
}

// RecordCacheLookup records a cache hit or miss for an entry kind.
func (r *Recorder) RecordCacheLookup(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(kind, result).Inc()
}

// RecordQuoteIssued records an issued quote by risk bucket.
func (r *Recorder) RecordQuoteIssued(bucket string) {
	r.quotesIssued.WithLabelValues(bucket).Inc()
}

// RecordSinkWrite records rows handed to an audit sink.
func (r *Recorder) RecordSinkWrite(sink, subject string) {
	r.sinkWrites.WithLabelValues(sink, subject).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordPoolTVL records the last observed TVL for a pool.
func (r *Recorder) RecordPoolTVL(pool string, tvl float64) {
	r.poolTVL.WithLabelValues(pool).Set(tvl)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
