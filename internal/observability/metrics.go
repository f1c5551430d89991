package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Checkout outcomes used as label values.
const (
	OutcomeSuccess  = "success"
	OutcomeShortage = "shortage"
	OutcomeEmpty    = "empty_cart"
	OutcomeError    = "error"
)

var (
	CheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "flavorshop",
		Name:      "checkouts_total",
		Help:      "Checkout attempts by outcome.",
	}, []string{"outcome"})

	OrdersNotified = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flavorshop",
		Name:      "orders_notified_total",
		Help:      "Orders successfully handed to the operator notifier.",
	})

	UnitsSold = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "flavorshop",
		Name:      "units_sold_total",
		Help:      "Units decremented from the ledger by successful checkouts.",
	})
)
