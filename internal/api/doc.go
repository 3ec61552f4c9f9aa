// Package api serves the HTTP trigger and read API of serpscan on Fiber.
//
// Routes:
//   - GET  /healthz                      liveness
//   - GET  /metrics                      Prometheus exposition
//   - GET  /api/v1/keywords              keyword registry
//   - GET  /api/v1/keywords/export       CSV or XLSX export (?format=)
//   - GET  /api/v1/keywords/:id/runs     recent runs, newest first (?limit=)
//   - POST /api/v1/keywords/:id/crawl    synchronous on-demand crawl, rate limited
//   - GET  /api/v1/crawl-runs/:id        one run with entries and checks
//
// JSON responses use the envelope {"status":"ok","data":...} or
// {"status":"error","error":"..."}.
package api
