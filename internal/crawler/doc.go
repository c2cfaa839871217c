// Package crawler defines the outcome model, collaborator interfaces, and the
// per-seed crawl loop shared by the worker and the orchestrator.
package crawler
