// Package observe provides Prometheus metrics and OpenTelemetry tracing
// for a realtime.Client and its dispatch.Registry.
//
//	metrics := observe.NewMetrics(observe.WithRegistry(reg))
//	tracing := observe.NewTracing()
//	registry := dispatch.New(
//		dispatch.WithObserver(metrics),
//		dispatch.WithObserver(tracing),
//		dispatch.WithPanicReporter(metrics),
//	)
//	client, err := realtime.New(cfg,
//		realtime.WithRegistry(registry),
//		realtime.WithInstrumentation(metrics, tracing),
//	)
//
// Expose the metrics with promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).
package observe
