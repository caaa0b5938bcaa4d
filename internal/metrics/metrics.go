package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCommitted  prometheus.Counter
	OrdersRejected   prometheus.Counter
	OrdersCancelled  prometheus.Counter
	ConflictRetries  prometheus.Counter
	SettleLatencySec prometheus.Histogram

	JobsProcessed prometheus.Counter
	JobsCoalesced prometheus.Counter
	JobsFailed    prometheus.Counter
	LowStockFlags prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	committed := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_orders_committed_total"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_orders_rejected_total"})
	cancelled := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_orders_cancelled_total"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_version_conflict_retries_total"})
	settleLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "inventory_settle_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	jobsProcessed := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_recalc_jobs_processed_total"})
	jobsCoalesced := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_recalc_jobs_coalesced_total"})
	jobsFailed := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_recalc_jobs_failed_total"})
	lowStock := prometheus.NewCounter(prometheus.CounterOpts{Name: "inventory_low_stock_flags_total"})

	r.MustRegister(committed, rejected, cancelled, conflicts, settleLatency,
		jobsProcessed, jobsCoalesced, jobsFailed, lowStock)

	return &Registry{
		reg:              r,
		OrdersCommitted:  committed,
		OrdersRejected:   rejected,
		OrdersCancelled:  cancelled,
		ConflictRetries:  conflicts,
		SettleLatencySec: settleLatency,
		JobsProcessed:    jobsProcessed,
		JobsCoalesced:    jobsCoalesced,
		JobsFailed:       jobsFailed,
		LowStockFlags:    lowStock,
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
