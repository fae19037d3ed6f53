/*
Copyright © 2026 Acronis International GmbH.

Released under MIT license.
*/

// Package service runs the long-lived parts of a cache daemon (HTTP API, background workers)
// as units with a shared start/stop lifecycle.
package service

// Unit is a component of the service with its own lifecycle.
type Unit interface {
	// Start runs the unit. It may return immediately or block for the whole lifetime of the unit.
	// A failure is reported by writing exactly one error to fatalErr; nothing is written on success
	// and the channel is not used after Start returns.
	Start(fatalErr chan<- error)

	// Stop halts the unit. It may be called even if Start failed or was never called.
	Stop(gracefully bool) error
}

// MetricsRegisterer is implemented by units owning Prometheus collectors.
type MetricsRegisterer interface {
	MustRegisterMetrics()
	UnregisterMetrics()
}
