// Package main hosts the distcrawl entrypoint.
//
// One binary runs both halves of the system:
//   - distcrawl worker: reads its identity from WORKER_ID, fetches its seed list from the
//     orchestrator, crawls each seed with the site profile bound to that identity, stores
//     and MD5-fingerprints every linked resource in a scratch directory, removes the
//     directory, and POSTs the batch of outcomes back (up to four attempts). One run per
//     process; the exit status is non-zero when the batch was not delivered.
//   - distcrawl orchestrator: serves GET /get_urls/{worker_id} from the configured
//     assignment table, ingests POST /post_results/data into the memory or Postgres
//     result store, optionally announces each batch on Pub/Sub, and exposes /healthz
//     and /metrics.
//
// Configuration comes from an optional YAML file (--config) overlaid by DISTCRAWL_*
// environment variables, e.g. DISTCRAWL_ORCHESTRATOR_URL, DISTCRAWL_STORE_DRIVER,
// DISTCRAWL_STORE_DSN, DISTCRAWL_PUBSUB_TOPIC_NAME, DISTCRAWL_METRICS_PUSH_URL.
package main
