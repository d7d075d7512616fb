package service

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"pockettrade.com/internal/domain"
)

var (
	metricCycles = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pocket_cycles_total",
		Help: "Execution cycles by outcome",
	}, []string{"outcome"})
	metricSwappedFrom  = prometheus.NewCounter(prometheus.CounterOpts{Name: "pocket_swapped_from_amount_total", Help: "Sum of realized from-amounts of committed cycles"})
	metricSwappedTo    = prometheus.NewCounter(prometheus.CounterOpts{Name: "pocket_swapped_to_amount_total", Help: "Sum of realized to-amounts of committed cycles"})
	metricStopsReached = prometheus.NewCounter(prometheus.CounterOpts{Name: "pocket_stop_conditions_reached_total", Help: "Pockets closed by a stop condition"})
	metricDeposits     = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pocket_deposits_total", Help: "Deposits by asset"}, []string{"asset"})
)

func init() {
	prometheus.MustRegister(
		metricCycles,
		metricSwappedFrom,
		metricSwappedTo,
		metricStopsReached,
		metricDeposits,
	)
}

// cycleOutcome 把周期结果映射为 metric 标签
func cycleOutcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrNotOperator):
		return "not_operator"
	case errors.Is(err, domain.ErrNotReadyToSwap):
		return "not_ready"
	case errors.Is(err, domain.ErrZeroSwap):
		return "zero_swap"
	case errors.Is(err, domain.ErrSlippageExceeded):
		return "slippage_exceeded"
	case errors.Is(err, domain.ErrBuyConditionNotFulfilled):
		return "buy_condition_not_fulfilled"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	}
	return "error"
}
