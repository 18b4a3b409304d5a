/*
Package observability exposes Prometheus metrics for the Arbiter engine.

Metrics are fed exclusively through domain.LifecycleHooks, so the engine and the
decision framework stay unaware of Prometheus:

	metrics := observability.NewMetrics(prometheus.NewRegistry())
	arb, err := arbiter.New(arbiter.WithLifecycleHooks(metrics.Hooks()))
*/
package observability
