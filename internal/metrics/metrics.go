package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DelegatedExecutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutela_delegated_executions_total",
			Help: "Total delegated calls by outcome (executed, rejected)",
		},
		[]string{"outcome"},
	)

	SubscriptionPayments = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutela_subscription_payments_total",
			Help: "Total subscription payment attempts by outcome",
		},
		[]string{"outcome"},
	)

	SubWalletSpends = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutela_subwallet_spends_total",
			Help: "Total sub-wallet spend attempts by outcome",
		},
		[]string{"outcome"},
	)

	SponsorshipDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutela_sponsorship_preapprovals_total",
			Help: "Total pre-approval decisions (approved, denied)",
		},
		[]string{"decision"},
	)

	SponsoredTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutela_sponsored_transactions_total",
			Help: "Total underwriting calls by outcome",
		},
		[]string{"outcome"},
	)

	SponsorshipBalance = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "tutela_sponsorship_balance",
		Help: "Current sponsorship gate balance in ledger units",
	})
)
