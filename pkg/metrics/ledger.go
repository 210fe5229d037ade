package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records cost lot health signals.
type LedgerMetrics struct {
	shortfallLots  *prometheus.CounterVec
	shortfallUnits *prometheus.CounterVec
}

// NewLedgerMetrics registers the ledger metrics on the provided registerer.
func NewLedgerMetrics(reg prometheus.Registerer) *LedgerMetrics {
	if reg == nil {
		return &LedgerMetrics{}
	}
	shortfallLots := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_cost_lot_shortfall_total",
		Help: "Synthetic cost lots written because consumption outran the pool.",
	}, []string{"reason"})
	shortfallUnits := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_cost_lot_shortfall_units_total",
		Help: "Inventory units covered by synthetic shortfall lots.",
	}, []string{"reason"})
	reg.MustRegister(shortfallLots, shortfallUnits)
	return &LedgerMetrics{
		shortfallLots:  shortfallLots,
		shortfallUnits: shortfallUnits,
	}
}

// ObserveShortfall records one synthetic lot covering count units.
func (m *LedgerMetrics) ObserveShortfall(reason string, count int) {
	if m == nil || m.shortfallLots == nil {
		return
	}
	label := normalizeLabel(reason)
	m.shortfallLots.WithLabelValues(label).Inc()
	m.shortfallUnits.WithLabelValues(label).Add(float64(count))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
