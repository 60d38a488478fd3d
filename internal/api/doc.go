// Package api hosts the optional observability listener that runs beside an
// acquisition command. Routes:
//   - GET /healthz and /readyz for liveness checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for the live run snapshot kept by progress.Tracker.
package api
