//go:build !noprom

package metrics

import (
	"fmt"
	"net/http"
	"strconv"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	promhttp "github.com/prometheus/client_golang/prometheus/promhttp"
)

type promRecorder struct {
	dbTotal      *prom.CounterVec
	dbSeconds    *prom.HistogramVec
	toolTotal    *prom.CounterVec
	toolSeconds  *prom.HistogramVec
	httpTotal    *prom.CounterVec
	graphSeconds *prom.HistogramVec
	graphEdges   *prom.GaugeVec
	poolInUse    prom.Gauge
	poolIdle     prom.Gauge
	stmtHits     prom.Counter
	stmtMisses   prom.Counter
}

func (p *promRecorder) IncDBOpTotal(op string, success bool) {
	p.dbTotal.WithLabelValues(op, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveDBOpSeconds(op string, success bool, seconds float64) {
	p.dbSeconds.WithLabelValues(op, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncToolTotal(tool string, success bool) {
	p.toolTotal.WithLabelValues(tool, fmt.Sprintf("%t", success)).Inc()
}

func (p *promRecorder) ObserveToolSeconds(tool string, success bool, seconds float64) {
	p.toolSeconds.WithLabelValues(tool, fmt.Sprintf("%t", success)).Observe(seconds)
}

func (p *promRecorder) IncHTTPRequest(route string, status int) {
	p.httpTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func (p *promRecorder) ObserveGraphBuild(variant string, seconds float64, edges int) {
	p.graphSeconds.WithLabelValues(variant).Observe(seconds)
	p.graphEdges.WithLabelValues(variant).Set(float64(edges))
}

func (p *promRecorder) ObservePoolStats(inUse, idle int) {
	p.poolInUse.Set(float64(inUse))
	p.poolIdle.Set(float64(idle))
}

func (p *promRecorder) IncStmtCache(hit bool) {
	if hit {
		p.stmtHits.Inc()
		return
	}
	p.stmtMisses.Inc()
}

func newPromRecorder() *promRecorder {
	return &promRecorder{
		dbTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "db_ops_total",
			Help: "Total number of DB operations",
		}, []string{"op", "success"}),
		dbSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "db_op_seconds",
			Help:    "DB operation duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"op", "success"}),
		toolTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "tool_calls_total",
			Help: "Total number of tool handler calls",
		}, []string{"tool", "success"}),
		toolSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "tool_call_seconds",
			Help:    "Tool handler duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"tool", "success"}),
		httpTotal: prom.NewCounterVec(prom.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of REST requests",
		}, []string{"route", "status"}),
		graphSeconds: prom.NewHistogramVec(prom.HistogramOpts{
			Name:    "graph_build_seconds",
			Help:    "Similarity graph build duration in seconds",
			Buckets: prom.DefBuckets,
		}, []string{"variant"}),
		graphEdges: prom.NewGaugeVec(prom.GaugeOpts{
			Name: "graph_edges",
			Help: "Edge count of the most recently built graph",
		}, []string{"variant"}),
		poolInUse: prom.NewGauge(prom.GaugeOpts{
			Name: "pool_in_use",
			Help: "Database connections currently in use",
		}),
		poolIdle: prom.NewGauge(prom.GaugeOpts{
			Name: "pool_idle",
			Help: "Idle database connections",
		}),
		stmtHits: prom.NewCounter(prom.CounterOpts{
			Name: "stmt_cache_hits_total",
			Help: "Prepared statement cache hits",
		}),
		stmtMisses: prom.NewCounter(prom.CounterOpts{
			Name: "stmt_cache_misses_total",
			Help: "Prepared statement cache misses",
		}),
	}
}

func (p *promRecorder) collectors() []prom.Collector {
	return []prom.Collector{
		p.dbTotal, p.dbSeconds, p.toolTotal, p.toolSeconds, p.httpTotal,
		p.graphSeconds, p.graphEdges, p.poolInUse, p.poolIdle, p.stmtHits, p.stmtMisses,
	}
}

func enablePrometheus(addr string) error {
	registry := prom.NewRegistry()
	p := newPromRecorder()
	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return err
	}
	for _, c := range p.collectors() {
		if err := registry.Register(c); err != nil {
			return fmt.Errorf("register collector: %w", err)
		}
	}
	SetRecorder(p)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	go func() { _ = http.ListenAndServe(addr, mux) }()
	return nil
}
