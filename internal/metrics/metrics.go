package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TransactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "escrow_transactions_total", Help: "Pipeline steps submitted, by outcome"},
		[]string{"step", "result"},
	)
	StepDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "escrow_step_duration_seconds",
			Help:    "Wall time of a pipeline step including confirmation",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"step"},
	)
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "escrow_operations_total", Help: "Orchestrator operations, by outcome"},
		[]string{"operation", "result"},
	)
)

func init() {
	prometheus.MustRegister(TransactionsTotal, StepDuration, OperationsTotal)
}

// Result maps an error to the label value used by the counters.
func Result(err error) string {
	if err != nil {
		return "failed"
	}
	return "ok"
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() { _ = srv.ListenAndServe() }()
	return srv
}
