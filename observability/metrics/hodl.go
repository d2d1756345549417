package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type HodlMetrics struct {
	depositsAccepted *prometheus.CounterVec
	withdrawals      *prometheus.CounterVec
	penaltiesCharged *prometheus.CounterVec
	depositsSum      *prometheus.GaugeVec
	holdBonusPool    *prometheus.GaugeVec
	commitBonusPool  *prometheus.GaugeVec
}

var (
	hodlOnce     sync.Once
	hodlRegistry *HodlMetrics
)

func Hodl() *HodlMetrics {
	hodlOnce.Do(func() {
		hodlRegistry = &HodlMetrics{
			depositsAccepted: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hodl_deposits_accepted_total",
				Help: "Count of accepted deposits and top-ups by asset.",
			}, []string{"asset"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hodl_withdrawals_total",
				Help: "Count of withdrawals by asset and kind.",
			}, []string{"asset", "kind"}),
			penaltiesCharged: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "hodl_penalties_charged_total",
				Help: "Cumulative penalty amount charged on early withdrawals per asset.",
			}, []string{"asset"}),
			depositsSum: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "hodl_deposits_sum",
				Help: "Sum of live deposit balances per asset.",
			}, []string{"asset"}),
			holdBonusPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "hodl_hold_bonus_pool",
				Help: "Undistributed hold bonus pool per asset.",
			}, []string{"asset"}),
			commitBonusPool: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Name: "hodl_commit_bonus_pool",
				Help: "Undistributed commit bonus pool per asset.",
			}, []string{"asset"}),
		}
		prometheus.MustRegister(
			hodlRegistry.depositsAccepted,
			hodlRegistry.withdrawals,
			hodlRegistry.penaltiesCharged,
			hodlRegistry.depositsSum,
			hodlRegistry.holdBonusPool,
			hodlRegistry.commitBonusPool,
		)
	})
	return hodlRegistry
}

func (m *HodlMetrics) ObserveDeposit(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.depositsAccepted.WithLabelValues(asset).Inc()
}

func (m *HodlMetrics) ObserveWithdraw(asset, kind string, penalty *big.Int) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	if kind == "" {
		kind = "unknown"
	}
	m.withdrawals.WithLabelValues(asset, kind).Inc()
	if penalty != nil && penalty.Sign() > 0 {
		m.penaltiesCharged.WithLabelValues(asset).Add(approx(penalty))
	}
}

func (m *HodlMetrics) ObservePool(asset string, depositsSum, holdBonuses, commitBonuses *big.Int) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.depositsSum.WithLabelValues(asset).Set(approx(depositsSum))
	m.holdBonusPool.WithLabelValues(asset).Set(approx(holdBonuses))
	m.commitBonusPool.WithLabelValues(asset).Set(approx(commitBonuses))
}

// approx converts a big.Int amount to float64 for gauge export. Exactness is
// not required here; the ledger remains the source of truth.
func approx(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
