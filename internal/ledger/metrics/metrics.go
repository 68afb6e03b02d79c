package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks share movements and ledger operation outcomes.
type Metrics struct {
	SharesPurchased   prometheus.Counter
	SharesSold        prometheus.Counter
	SharesTransferred prometheus.Counter
	Rejections        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SharesPurchased: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_ledger_shares_purchased_total",
			Help: "Shares moved from available supply to buyers",
		}),
		SharesSold: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_ledger_shares_sold_total",
			Help: "Shares returned by holders to available supply",
		}),
		SharesTransferred: factory.NewCounter(prometheus.CounterOpts{
			Name: "tessera_ledger_shares_transferred_total",
			Help: "Shares moved between holders",
		}),
		Rejections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tessera_ledger_rejections_total",
			Help: "Ledger operations rejected, by operation and error code",
		}, []string{"operation", "code"}),
		OperationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tessera_ledger_operation_duration_seconds",
			Help:    "Duration of ledger mutations including lock wait",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
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

func (m *Metrics) AddPurchased(shares int64) {
	if m == nil {
		return
	}
	m.SharesPurchased.Add(float64(shares))
}

func (m *Metrics) AddSold(shares int64) {
	if m == nil {
		return
	}
	m.SharesSold.Add(float64(shares))
}

func (m *Metrics) AddTransferred(shares int64) {
	if m == nil {
		return
	}
	m.SharesTransferred.Add(float64(shares))
}
