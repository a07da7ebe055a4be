package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RidesRequested = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "rides_requested_total",
		Help: "Rides created in pending state",
	})
	RidesAccepted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "rides_accepted_total",
		Help: "Accept transitions that won the race",
	})
	AcceptConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "accept_conflicts_total",
		Help: "Accept attempts that lost to a concurrent driver",
	})
	RidesCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "rides_completed_total",
		Help: "Rides completed after PIN verification",
	})
	RidesCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "rides_cancelled_total",
		Help: "Rides cancelled before completion",
	})
	MatchTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "match_timeouts_total",
		Help: "Match windows that expired with no driver",
	})
	PinFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "pin_failures_total",
		Help: "Failed pickup PIN verifications",
	})
	WalletOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ride_coordinator", Name: "wallet_operations_total",
		Help: "Wallet ledger operations by kind and outcome",
	}, []string{"kind", "outcome"})
	MatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ride_coordinator", Name: "match_latency_seconds",
		Help:    "Time from ride creation to accepted",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})
)
