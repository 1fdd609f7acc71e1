// Package audit provides the buffered audit event dispatcher and the sinks
// it forwards to. The root package re-exports the sink types; the dispatcher
// stays internal.
package audit
