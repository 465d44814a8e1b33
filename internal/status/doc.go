// Package status serves the state of a long-running scheduler over HTTP:
// liveness, the outcome of the last report run and Prometheus metrics.
//
// Routes:
//
//	GET /health      scheduler liveness and last run result
//	GET /runs/last   per-cabinet outcome of the last run
//	GET /metrics     run metrics in the Prometheus exposition format
package status
