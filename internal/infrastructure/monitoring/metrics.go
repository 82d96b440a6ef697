package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	LoansCreatedTotal         prometheus.Counter
	PaymentsTotal             *prometheus.CounterVec
	LateFeesAccruedTotal      prometheus.Counter
	CreditAccountsOpenedTotal prometheus.Counter
	LoansCompletedTotal       prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "credit_engine_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		LoansCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_loans_created_total",
				Help: "Total number of loans created.",
			},
		),
		PaymentsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "credit_engine_payments_total",
				Help: "Total number of loan payment attempts by outcome.",
			},
			[]string{"status"},
		),
		LateFeesAccruedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_late_fee_accruals_total",
				Help: "Total number of late fee accruals applied by the overdue job.",
			},
		),
		CreditAccountsOpenedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_credit_accounts_opened_total",
				Help: "Total number of store credit (fiado) accounts opened.",
			},
		),
		LoansCompletedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "credit_engine_loans_completed_total",
				Help: "Total number of loans paid off in full.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordPayment(status string) {
	Business.PaymentsTotal.WithLabelValues(status).Inc()
}

func RecordLoanCreated() {
	Business.LoansCreatedTotal.Inc()
}

func RecordLoanCompleted() {
	Business.LoansCompletedTotal.Inc()
}

func RecordLateFeeAccrual() {
	Business.LateFeesAccruedTotal.Inc()
}

func RecordCreditAccountOpened() {
	Business.CreditAccountsOpenedTotal.Inc()
}
