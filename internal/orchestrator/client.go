// Package orchestrator holds the worker-side clients for the assignment service and the result collector.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JakeFAU/distcrawl/internal/crawler"
)

// Route paths served by the orchestrator.
const (
	AssignmentPath = "/get_urls/"
	CollectorPath  = "/post_results/data"
)

// AssignmentResponse is the body returned for a worker's assignment request.
type AssignmentResponse struct {
	URLs  []string `json:"urls,omitempty"`
	Error string   `json:"error,omitempty"`
}

// AssignmentClient fetches the seed URLs assigned to a worker identity.
type AssignmentClient struct {
	baseURL string
	fetcher crawler.Fetcher
}

// NewAssignmentClient builds a client for the orchestrator at baseURL.
func NewAssignmentClient(baseURL string, fetcher crawler.Fetcher) *AssignmentClient {
	return &AssignmentClient{baseURL: strings.TrimRight(baseURL, "/"), fetcher: fetcher}
}

// Seeds returns the seeds assigned to identity. A response without a urls key yields no seeds.
func (c *AssignmentClient) Seeds(ctx context.Context, identity string) ([]string, error) {
	endpoint := c.baseURL + AssignmentPath + url.PathEscape(identity)
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{URL: endpoint, Method: http.MethodGet})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", crawler.ErrAssignment, err)
	}

	var body AssignmentResponse
	if err := json.Unmarshal(resp.Body, &body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", crawler.ErrAssignment, err)
	}
	return body.URLs, nil
}

// CollectorClient delivers result batches to the collector.
type CollectorClient struct {
	endpoint string
	fetcher  crawler.Fetcher
}

// NewCollectorClient builds a client for the collector at baseURL.
func NewCollectorClient(baseURL string, fetcher crawler.Fetcher) *CollectorClient {
	return &CollectorClient{endpoint: strings.TrimRight(baseURL, "/") + CollectorPath, fetcher: fetcher}
}

// Submit POSTs batch as a JSON array. Any 2xx counts as delivered; the acknowledgement
// body is decoded when it parses and ignored otherwise.
func (c *CollectorClient) Submit(ctx context.Context, batch crawler.Batch) (crawler.IngestAck, error) {
	if batch == nil {
		batch = crawler.Batch{}
	}
	payload, err := json.Marshal(batch)
	if err != nil {
		return crawler.IngestAck{}, fmt.Errorf("%w: encode batch: %w", crawler.ErrReportDelivery, err)
	}

	headers := http.Header{}
	headers.Set("Content-Type", "application/json")
	resp, err := c.fetcher.Fetch(ctx, crawler.FetchRequest{
		URL:     c.endpoint,
		Method:  http.MethodPost,
		Headers: headers,
		Body:    payload,
	})
	if err != nil {
		return crawler.IngestAck{}, fmt.Errorf("%w: %w", crawler.ErrReportDelivery, err)
	}

	var ack crawler.IngestAck
	if err := json.Unmarshal(resp.Body, &ack); err != nil {
		return crawler.IngestAck{}, nil
	}
	return ack, nil
}
