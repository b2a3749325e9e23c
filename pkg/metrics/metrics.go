// Copyright 2025 Intmax2 Validity Prover
//
// Package metrics defines the Prometheus instrumentation for the
// Validity Prover's cooperative loops (L1/L2 observers, state
// reconstructor, prover task coordination). The client_golang registry
// is already part of the dependency stack; this package is the first
// thing in the tree to actually use it.

package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	L1DepositsObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "validity_prover",
		Subsystem: "l1_observer",
		Name:      "deposits_observed_total",
		Help:      "Deposited events ingested from the liquidity contract.",
	})

	L1ObserverWatermark = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "validity_prover",
		Subsystem: "l1_observer",
		Name:      "watermark_block_number",
		Help:      "Last L1 block number fully scanned for deposit events.",
	})

	L2BlocksObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "validity_prover",
		Subsystem: "l2_observer",
		Name:      "blocks_observed_total",
		Help:      "BlockPosted events ingested from the rollup contract.",
	})

	L2DepositLeavesObserved = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "validity_prover",
		Subsystem: "l2_observer",
		Name:      "deposit_leaves_observed_total",
		Help:      "DepositLeafInserted events ingested from the rollup contract.",
	})

	ReconstructedBlockHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "validity_prover",
		Subsystem: "reconstructor",
		Name:      "block_height",
		Help:      "Highest block number with state reconstructed into the Merkle forest.",
	})

	ReconstructorStalls = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "validity_prover",
		Subsystem: "reconstructor",
		Name:      "stalls_total",
		Help:      "Times reconstruction paused waiting on a missing deposit leaf or block payload.",
	})

	ProverTasksAssigned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "validity_prover",
		Subsystem: "prover",
		Name:      "tasks_assigned_total",
		Help:      "Prover tasks handed out to workers.",
	})

	ProverLeasesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "validity_prover",
		Subsystem: "prover",
		Name:      "leases_expired_total",
		Help:      "Assigned tasks reclaimed by the sweeper after their lease lapsed.",
	})

	CumulativeProofHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "validity_prover",
		Subsystem: "prover",
		Name:      "cumulative_proof_height",
		Help:      "Highest block number with a chained cumulative validity proof.",
	})
)

func init() {
	prometheus.MustRegister(
		L1DepositsObserved,
		L1ObserverWatermark,
		L2BlocksObserved,
		L2DepositLeavesObserved,
		ReconstructedBlockHeight,
		ReconstructorStalls,
		ProverTasksAssigned,
		ProverLeasesExpired,
		CumulativeProofHeight,
	)
}
