// Package telemetry wraps OpenTelemetry SDK initialization, providing a
// central TracerProvider and MeterProvider configuration. When telemetry
// is disabled the globals stay noop and no external service is contacted.
package telemetry
