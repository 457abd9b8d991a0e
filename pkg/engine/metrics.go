package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var executedTxCounterVec = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "multisig_executed_txs_total",
		Help: "Multisig txs that reached the execution step, by outcome",
	},
	[]string{"outcome"},
)
