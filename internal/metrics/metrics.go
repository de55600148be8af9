package metrics

import (
	"context"
	"errors"
	"net/http"

	"factor-trading-bot/internal/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_cycles_total", Help: "Decision cycles by result"},
		[]string{"result"},
	)
	CycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "trader_cycle_duration_seconds",
			Help:    "Wall time of one decision cycle",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
	)
	SignalsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_signals_total", Help: "Per-symbol cycle outcomes"},
		[]string{"symbol", "action"},
	)
	OrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_orders_total", Help: "Bracket orders by submission status"},
		[]string{"symbol", "side", "status"},
	)
	ClosesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_position_closes_total", Help: "Position close attempts"},
		[]string{"symbol", "result"},
	)
	MissedTriggers = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "trader_missed_triggers_total", Help: "Minute edges dropped while a cycle was running"},
	)
	ConsecutiveAborts = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "trader_consecutive_aborts", Help: "Aborted cycles since the last successful one"},
	)
	AbortAlert = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "trader_abort_alert", Help: "1 while consecutive aborts are at or above the alert threshold"},
	)
	CallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "trader_external_calls_total", Help: "Broker and feed calls by result"},
		[]string{"component", "method", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		CyclesTotal,
		CycleDuration,
		SignalsTotal,
		OrdersTotal,
		ClosesTotal,
		MissedTriggers,
		ConsecutiveAborts,
		AbortAlert,
		CallsTotal,
	)
}

// Result maps an error to the "result" label value.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorWithErr(context.Background(), "Metrics server stopped", err, "addr", addr)
		}
	}()
	return srv
}
