/*
Package metrics defines and registers PixelForge's Prometheus metrics:
task/image counts by status, queue depth, provider request outcomes and
latency, API request counts and latency, and reconciliation counters.
All metrics are registered at package init and exposed via Handler()
for mounting under /metrics. The Timer type times an operation and
records the elapsed duration to a histogram:

	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ProviderRequestDuration, providerName)
*/
package metrics
