// Package prometheus renders authcore metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts an [authcore.Engine] and exposes an
// [net/http.Handler] over all counters and histograms. Counter names are
// prefixed authcore_*_total; the single histogram is
// authcore_authenticate_latency_seconds.
//
// The package registers nothing in a global Prometheus registry; callers
// mount the Handler.
package prometheus
