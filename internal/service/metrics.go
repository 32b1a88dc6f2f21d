package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var generatedTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "marzgo",
		Subsystem: "subscription",
		Name:      "generated_total",
		Help:      "Subscription payloads generated, by output format.",
	},
	[]string{"format"},
)
