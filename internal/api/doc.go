// Package api hosts the orchestrator's HTTP server. Routes:
//   - GET / liveness marker.
//   - GET /get_urls/{worker_id} seed assignment for a worker identity.
//   - POST /post_results/data batch ingestion into the ResultStore.
//   - GET /healthz for probes and GET /metrics for Prometheus scraping.
package api
