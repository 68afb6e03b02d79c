package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks revenue flowing through distributions.
type Metrics struct {
	RevenueDeposited    prometheus.Counter
	DistributionsOpened prometheus.Counter
	DistributionsClosed prometheus.Counter
	Paid                *prometheus.CounterVec
	Rejections          *prometheus.CounterVec
	BatchPaid           prometheus.Histogram
	OperationDuration   *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RevenueDeposited: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_distribution_revenue_deposited_total",
			Help: "Revenue deposited into asset custody, in minor units",
		}),
		DistributionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_distributions_created_total",
			Help: "Distributions created",
		}),
		DistributionsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_distributions_completed_total",
			Help: "Distributions whose every allocation has been claimed",
		}),
		Paid: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_distribution_paid_total",
			Help: "Minor units paid out by kind (fee or holder allocation)",
		}, []string{"kind"}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_distribution_rejections_total",
			Help: "Distribution operations rejected, by operation and error code",
		}, []string{"operation", "code"}),
		BatchPaid: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tessera_distribution_batch_paid_allocations",
			Help:    "Allocations paid per batch distribution call",
			Buckets: prometheus.ExponentialBuckets(1, 4, 6),
		}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tessera_distribution_operation_duration_seconds",
			Help:    "Duration of distribution mutations including lock wait",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementRejection(operation, code string) {
	if m == nil {
		return
	}
	m.Rejections.WithLabelValues(operation, code).Inc()
}

func (m *Metrics) AddDeposit(amount int64) {
	if m == nil {
		return
	}
	m.RevenueDeposited.Add(float64(amount))
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.DistributionsOpened.Inc()
}

func (m *Metrics) IncrementCompleted() {
	if m == nil {
		return
	}
	m.DistributionsClosed.Inc()
}

func (m *Metrics) AddPaid(kind string, amount int64) {
	if m == nil || amount <= 0 {
		return
	}
	m.Paid.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) ObserveBatch(paid int) {
	if m == nil {
		return
	}
	m.BatchPaid.Observe(float64(paid))
}
