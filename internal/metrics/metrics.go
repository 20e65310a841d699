// Package metrics exposes engine counters through Prometheus.
package metrics

import (
	"net/http"
	"time"

	"forex-signal-engine/internal/domain"
	"forex-signal-engine/internal/monitor"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder struct {
	registry *prometheus.Registry

	passes          *prometheus.CounterVec
	passDuration    *prometheus.HistogramVec
	targetsRecorded prometheus.Counter
	outcomes        *prometheus.CounterVec
	duplicates      prometheus.Counter
	storeErrors     prometheus.Counter
	skipped         prometheus.Counter
	signals         *prometheus.CounterVec
	analysisRuns    *prometheus.CounterVec
	lastPrice       *prometheus.GaugeVec
}

// New registers every collector on a private registry so tests can build several recorders.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		passes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_monitor_passes_total",
			Help: "Monitor passes by trigger",
		}, []string{"trigger"}),
		passDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "fx_monitor_pass_duration_seconds",
			Help:    "Duration of monitor passes",
			Buckets: prometheus.DefBuckets,
		}, []string{"trigger"}),
		targetsRecorded: f.NewCounter(prometheus.CounterOpts{
			Name: "fx_monitor_targets_recorded_total",
			Help: "Take-profit levels newly recorded as hit",
		}),
		outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_monitor_outcomes_total",
			Help: "Terminal outcomes by kind",
		}, []string{"kind"}),
		duplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "fx_monitor_duplicate_outcomes_total",
			Help: "Outcome inserts absorbed because one already existed",
		}),
		storeErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "fx_monitor_store_errors_total",
			Help: "Per-signal store failures during monitor passes",
		}),
		skipped: f.NewCounter(prometheus.CounterOpts{
			Name: "fx_monitor_skipped_total",
			Help: "Signals skipped for lack of a price",
		}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_signals_emitted_total",
			Help: "Signals emitted by strategy",
		}, []string{"strategy"}),
		analysisRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "fx_analysis_symbols_total",
			Help: "Per-symbol analysis results",
		}, []string{"result"}),
		lastPrice: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "fx_last_price",
			Help: "Last price seen for a symbol",
		}, []string{"symbol"}),
	}
}

func (r *Recorder) RecordPass(res monitor.PassResult, elapsed time.Duration) {
	trigger := string(res.Trigger)
	r.passes.WithLabelValues(trigger).Inc()
	r.passDuration.WithLabelValues(trigger).Observe(elapsed.Seconds())
	r.targetsRecorded.Add(float64(res.TargetsRecorded))
	r.outcomes.WithLabelValues("closed").Add(float64(res.Closed))
	r.outcomes.WithLabelValues("recovered").Add(float64(res.Recovered))
	r.duplicates.Add(float64(res.Duplicates))
	r.storeErrors.Add(float64(res.Errors))
	r.skipped.Add(float64(res.Skipped))
}

func (r *Recorder) RecordSignal(strategy domain.StrategyTag) {
	r.signals.WithLabelValues(string(strategy)).Inc()
}

// RecordAnalysis counts one symbol's analysis result ("signal", "none", "skipped", "error").
func (r *Recorder) RecordAnalysis(result string) {
	r.analysisRuns.WithLabelValues(result).Inc()
}

func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// Handler serves the recorder's registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
