/*
Package observability exposes the visit lifecycle as Prometheus metrics.

Metrics subscribes to an event dispatcher and keeps no reference to the
engine, so it can be attached to any number of engines sharing a registry:

	m := observability.NewMetrics(prometheus.DefaultRegisterer)
	remove := m.Attach(engine.Events())
	defer remove()
*/
package observability
