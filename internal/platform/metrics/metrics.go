package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LoansCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_loans_created_total",
			Help: "Total number of loans created",
		},
	)

	LoanRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_loan_rejections_total",
			Help: "Total number of rejected loan requests",
		},
		[]string{"reason"},
	)

	LoansReturned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "library_loans_returned_total",
			Help: "Total number of loans marked as returned",
		},
	)

	OverdueScans = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "library_overdue_scans_total",
			Help: "Total number of overdue scans by result",
		},
		[]string{"result"},
	)

	OverdueLoans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "library_overdue_loans",
			Help: "Number of overdue loans found by the last scan",
		},
	)

	OverdueRecipients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "library_overdue_notified_recipients",
			Help: "Number of distinct recipients notified by the last scan",
		},
	)
)
