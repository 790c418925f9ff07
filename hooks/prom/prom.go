// Package promhook exports cache events as Prometheus metrics.
package promhook

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/unkn0wn-root/doccache"
)

type Hooks struct {
	expiredOnRead prometheus.Counter
	sweeps        *prometheus.CounterVec
	sweepDuration prometheus.Histogram
	lastCutoff    prometheus.Gauge
	selfHeal      *prometheus.CounterVec
}

var _ doccache.Hooks = (*Hooks)(nil)

// New registers the metrics with reg. A nil reg means prometheus.DefaultRegisterer.
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Hooks{
		expiredOnRead: f.NewCounter(prometheus.CounterOpts{
			Name: "doccache_expired_on_read_total",
			Help: "Number of logically expired records deleted by a read",
		}),
		sweeps: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doccache_sweeps_total",
			Help: "Number of background sweeps by outcome",
		}, []string{"result"}),
		sweepDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "doccache_sweep_duration_seconds",
			Help:    "Duration of successful background sweeps",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		}),
		lastCutoff: f.NewGauge(prometheus.GaugeOpts{
			Name: "doccache_sweep_last_cutoff_timestamp_seconds",
			Help: "Cutoff of the most recently started sweep, as a unix timestamp",
		}),
		selfHeal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "doccache_self_heal_total",
			Help: "Number of undecodable values removed by typed reads",
		}, []string{"reason"}),
	}
}

func (h *Hooks) ExpiredOnRead(string) { h.expiredOnRead.Inc() }

func (h *Hooks) SweepStarted(cutoff time.Time) {
	h.lastCutoff.Set(float64(cutoff.UnixNano()) / 1e9)
}

func (h *Hooks) SweepCompleted(_ time.Time, took time.Duration) {
	h.sweeps.WithLabelValues("completed").Inc()
	h.sweepDuration.Observe(took.Seconds())
}

func (h *Hooks) SweepFailed(time.Time, error) { h.sweeps.WithLabelValues("failed").Inc() }
func (h *Hooks) SweepCoalesced()              { h.sweeps.WithLabelValues("coalesced").Inc() }

func (h *Hooks) SelfHeal(_ string, reason string) { h.selfHeal.WithLabelValues(reason).Inc() }
