package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// Failure classes. Each one is absorbed by the smallest unit of work that can contain it.
var (
	// ErrAssignment ends the run: no seeds, no report.
	ErrAssignment = errors.New("assignment fetch failed")
	// ErrSeedFetch degrades to a single error outcome for the seed.
	ErrSeedFetch = errors.New("seed fetch failed")
	// ErrResourcePage skips one intermediate page of a two-hop site.
	ErrResourcePage = errors.New("resource page fetch failed")
	// ErrDownload degrades to an error outcome for one resource.
	ErrDownload = errors.New("resource download failed")
	// ErrReportDelivery is retried and then drops the batch.
	ErrReportDelivery = errors.New("report delivery failed")
)

// FetchError is returned by fetchers for non-2xx responses and transport failures.
// StatusCode is zero when no response was received.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.URL)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewStatusError builds a FetchError for an HTTP status outside 2xx.
func NewStatusError(url string, status int) *FetchError {
	return &FetchError{URL: url, StatusCode: status, Err: fmt.Errorf("unexpected status %d", status)}
}

// IsSuccessStatus reports whether code is in the 2xx range.
func IsSuccessStatus(code int) bool {
	return code >= 200 && code < 300
}
