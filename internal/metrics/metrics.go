package metrics

import (
	"sync"
	"time"
)

// Package metrics provides a minimal instrumentation interface with a no-op
// default and an optional Prometheus-backed implementation.

// Recorder defines the metrics surface used across the codebase.
type Recorder interface {
	IncDBOpTotal(op string, success bool)
	ObserveDBOpSeconds(op string, success bool, seconds float64)
	IncToolTotal(tool string, success bool)
	ObserveToolSeconds(tool string, success bool, seconds float64)
	IncHTTPRequest(route string, status int)
	ObserveGraphBuild(variant string, seconds float64, edges int)
	ObservePoolStats(inUse, idle int)
	IncStmtCache(hit bool)
}

// noopRecorder implements Recorder with no-ops.
type noopRecorder struct{}

func (n *noopRecorder) IncDBOpTotal(string, bool)                {}
func (n *noopRecorder) ObserveDBOpSeconds(string, bool, float64) {}
func (n *noopRecorder) IncToolTotal(string, bool)                {}
func (n *noopRecorder) ObserveToolSeconds(string, bool, float64) {}
func (n *noopRecorder) IncHTTPRequest(string, int)               {}
func (n *noopRecorder) ObserveGraphBuild(string, float64, int)   {}
func (n *noopRecorder) ObservePoolStats(int, int)                {}
func (n *noopRecorder) IncStmtCache(bool)                        {}

var (
	recMu    sync.RWMutex
	recorder Recorder = &noopRecorder{}
)

// Default returns the current recorder.
func Default() Recorder {
	recMu.RLock()
	defer recMu.RUnlock()
	return recorder
}

// SetRecorder swaps the global recorder implementation.
func SetRecorder(r Recorder) {
	recMu.Lock()
	defer recMu.Unlock()
	if r == nil {
		r = &noopRecorder{}
	}
	recorder = r
}

// TimeOp is a helper to time store and use-case operations.
func TimeOp(op string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncDBOpTotal(op, success)
		Default().ObserveDBOpSeconds(op, success, dur)
	}
}

// TimeTool is a helper to time tool handler operations.
func TimeTool(tool string) func(success bool) {
	start := time.Now()
	return func(success bool) {
		dur := time.Since(start).Seconds()
		Default().IncToolTotal(tool, success)
		Default().ObserveToolSeconds(tool, success, dur)
	}
}

// TimeGraph times a graph build; call the result with the edge count.
func TimeGraph(variant string) func(edges int) {
	start := time.Now()
	return func(edges int) {
		Default().ObserveGraphBuild(variant, time.Since(start).Seconds(), edges)
	}
}

// Init enables the Prometheus exporter when enabled is true. It starts a
// small HTTP server on addr (default :9090) with /metrics and /healthz.
func Init(enabled bool, addr string) error {
	if !enabled {
		return nil
	}
	if addr == "" {
		addr = ":9090"
	}
	return enablePrometheus(addr)
}

// enablePrometheus is provided by build-tagged files.
