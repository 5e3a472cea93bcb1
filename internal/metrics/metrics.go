package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Compose outcomes.
const (
	OutcomeComposited = "composited"
	OutcomeFallback   = "fallback"
	OutcomeFailed     = "failed"
)

// Metrics provides observability for card export, captioning and metering.
// All methods are safe on a nil receiver so components can run without it.
type Metrics struct {
	ComposeDuration prometheus.Histogram
	ComposeTotal    *prometheus.CounterVec
	CaptionTotal    *prometheus.CounterVec
	MeteringTotal   *prometheus.CounterVec
}

// New creates a Metrics instance registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ComposeDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "polaroid_compose_duration_seconds",
			Help:    "Duration of card compositing including decode and encode",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		ComposeTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polaroid_compose_total",
			Help: "Card exports by outcome (composited, fallback, failed)",
		}, []string{"outcome"}),
		CaptionTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polaroid_caption_total",
			Help: "Caption requests by outcome",
		}, []string{"outcome"}),
		MeteringTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polaroid_metering_reports_total",
			Help: "Usage reports forwarded to the billing API by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveCompose records one export. Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveCompose(start time.Time, outcome string) {
	if m == nil {
		return
	}
	m.ComposeDuration.Observe(time.Since(start).Seconds())
	m.ComposeTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCaption(outcome string) {
	if m == nil {
		return
	}
	m.CaptionTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncMetering(outcome string) {
	if m == nil {
		return
	}
	m.MeteringTotal.WithLabelValues(outcome).Inc()
}
