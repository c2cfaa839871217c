// Package stream implements crawler.StreamFetcher on net/http so large resources
// can be copied to disk without buffering the whole body.
package stream

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/JakeFAU/distcrawl/internal/crawler"
)

// DefaultTimeout bounds each resource download, body included.
const DefaultTimeout = 30 * time.Second

// Pacer gates each request on its target URL.
type Pacer interface {
	Wait(ctx context.Context, rawURL string) error
}

// Config controls the streaming client.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Pacer, when set, is waited on before every request.
	Pacer Pacer
}

// Fetcher opens response bodies for incremental reads.
type Fetcher struct {
	client    *http.Client
	userAgent string
	pacer     Pacer
}

// New builds a streaming Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.Timeout},
		userAgent: cfg.UserAgent,
		pacer:     cfg.Pacer,
	}
}

// Open issues the request and returns the body. Non-2xx statuses and transport
// failures return *crawler.FetchError and leave nothing for the caller to close.
func (f *Fetcher) Open(ctx context.Context, request crawler.FetchRequest) (io.ReadCloser, error) {
	if f.pacer != nil {
		if err := f.pacer.Wait(ctx, request.URL); err != nil {
			return nil, &crawler.FetchError{URL: request.URL, Err: err}
		}
	}
	method := request.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	if len(request.Body) > 0 {
		body = bytes.NewReader(request.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return nil, &crawler.FetchError{URL: request.URL, Err: fmt.Errorf("build request: %w", err)}
	}
	for key, values := range request.Headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if f.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	for _, c := range request.Cookies {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &crawler.FetchError{URL: request.URL, Err: err}
	}
	if !crawler.IsSuccessStatus(resp.StatusCode) {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		return nil, crawler.NewStatusError(request.URL, resp.StatusCode)
	}
	return resp.Body, nil
}
