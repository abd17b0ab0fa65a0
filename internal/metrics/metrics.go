// Package metrics holds the Prometheus collectors for the referral ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Attributions counts applyReferralCode outcomes by referral type.
	Attributions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlink",
		Subsystem: "referral",
		Name:      "attributions_total",
		Help:      "Referral code applications by referral type and outcome.",
	}, []string{"referral_type", "outcome"})

	FreeDeliveriesGranted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farmlink",
		Subsystem: "referral",
		Name:      "free_deliveries_granted_total",
		Help:      "Free deliveries credited to referral profiles.",
	})

	CashbackGrantedCents = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farmlink",
		Subsystem: "referral",
		Name:      "cashback_granted_cents_total",
		Help:      "Farmer referral cashback credited, in cents.",
	})

	// Redemptions counts free delivery redemption attempts by outcome
	// (applied, already_applied, unavailable, error).
	Redemptions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlink",
		Subsystem: "referral",
		Name:      "redemptions_total",
		Help:      "Free delivery redemptions by outcome.",
	}, []string{"outcome"})

	CodeCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "farmlink",
		Subsystem: "referral",
		Name:      "code_collisions_total",
		Help:      "Referral code candidates rejected as already taken.",
	})

	TxRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "farmlink",
		Subsystem: "referral",
		Name:      "tx_retries_total",
		Help:      "Transactions replayed after a transient store failure.",
	}, []string{"operation"})

	TxDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "farmlink",
		Subsystem: "referral",
		Name:      "tx_duration_seconds",
		Help:      "Duration of referral ledger transactions including retries.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
)

// Outcome labels shared by the counters.
const (
	OutcomeOK          = "ok"
	OutcomeRejected    = "rejected"
	OutcomeError       = "error"
	OutcomeApplied     = "applied"
	OutcomeDuplicate   = "already_applied"
	OutcomeUnavailable = "unavailable"
)
