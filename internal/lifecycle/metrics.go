package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_requests_created_total",
		Help: "Requests created, by type and outcome (created, duplicate, rejected).",
	}, []string{"request_type", "outcome"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_transitions_total",
		Help: "Successful status transitions, by type and edge.",
	}, []string{"request_type", "from", "to"})

	paymentsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lifecycle_gateway_payments_total",
		Help: "Gateway payments recorded against requests.",
	}, []string{"request_type"})
)
