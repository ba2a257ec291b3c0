// Package http serves the status endpoints of a pipeline run.
//
// Routes:
//
//	GET /health   liveness and version
//	GET /status   run state, step progress, runtime stats and build info
//	GET /metrics  Prometheus exposition of the OpenTelemetry metrics
//
// Errors are rendered as APIError JSON documents through chi/render.
// Middleware order: request id, run id tagging, panic recovery, optional
// tracing, request logging, rate limiting.
package http
