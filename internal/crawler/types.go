package crawler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// StatusSuccess is the wire status of an outcome whose resource was stored and fingerprinted.
const StatusSuccess = "success"

const errorStatusPrefix = "error: "

// Outcome is the per-resource record produced by one download attempt.
// File and Fingerprint are set only when Status is StatusSuccess; on the wire
// they are always present and null when unset.
type Outcome struct {
	URL         string `json:"url"`
	File        string `json:"file"`
	Fingerprint string `json:"md5"`
	Status      string `json:"status"`
}

type outcomeWire struct {
	URL         string  `json:"url"`
	File        *string `json:"file"`
	Fingerprint *string `json:"md5"`
	Status      string  `json:"status"`
}

func (o Outcome) wire() outcomeWire {
	return outcomeWire{
		URL:         o.URL,
		File:        nullable(o.File),
		Fingerprint: nullable(o.Fingerprint),
		Status:      o.Status,
	}
}

// MarshalJSON writes file and md5 as null when they are empty.
func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.wire())
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Succeeded builds a success outcome for a stored artifact.
func Succeeded(url string, artifact Artifact) Outcome {
	return Outcome{
		URL:         url,
		File:        artifact.Path,
		Fingerprint: artifact.Fingerprint,
		Status:      StatusSuccess,
	}
}

// Failed builds an error outcome. It never carries a file or fingerprint.
func Failed(url string, err error) Outcome {
	msg := "unknown error"
	if err != nil {
		msg = err.Error()
	}
	return Outcome{URL: url, Status: errorStatusPrefix + msg}
}

// OK reports whether the outcome records a successful download.
func (o Outcome) OK() bool {
	return o.Status == StatusSuccess
}

// ErrorMessage returns the failure message, or "" for successful outcomes.
func (o Outcome) ErrorMessage() string {
	if o.OK() {
		return ""
	}
	return strings.TrimPrefix(o.Status, errorStatusPrefix)
}

// Batch is the ordered set of outcomes gathered during one worker run.
type Batch []Outcome

// Counts returns the number of successful and failed outcomes in the batch.
func (b Batch) Counts() (succeeded, failed int) {
	for _, o := range b {
		if o.OK() {
			succeeded++
		} else {
			failed++
		}
	}
	return succeeded, failed
}

// Artifact is a resource persisted in scratch storage together with its digest.
type Artifact struct {
	Path        string
	Fingerprint string
}

// Document is a fetched HTML page plus any session state needed to follow its links.
type Document struct {
	URL     string
	Body    []byte
	Cookies []*http.Cookie
}

// FetchRequest captures everything needed to perform one HTTP call.
type FetchRequest struct {
	URL     string
	Method  string
	Headers http.Header
	Body    []byte
	Cookies []*http.Cookie
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Cookies    []*http.Cookie
	Duration   time.Duration
}

// Cookie returns the named response cookie, if present.
func (r FetchResponse) Cookie(name string) (*http.Cookie, bool) {
	for _, c := range r.Cookies {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// StoredRecord is one outcome as persisted by the result collector.
type StoredRecord struct {
	ID         string    `json:"id"`
	BatchID    string    `json:"batch_id"`
	ReceivedAt time.Time `json:"received_at"`
	Outcome
}

// MarshalJSON flattens the record and keeps the outcome's null file and md5.
func (r StoredRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID         string    `json:"id"`
		BatchID    string    `json:"batch_id"`
		ReceivedAt time.Time `json:"received_at"`
		outcomeWire
	}{
		ID:          r.ID,
		BatchID:     r.BatchID,
		ReceivedAt:  r.ReceivedAt,
		outcomeWire: r.Outcome.wire(),
	})
}

// IngestAck is the collector's acknowledgement of a delivered batch.
type IngestAck struct {
	Status        string `json:"status"`
	InsertedCount int    `json:"inserted_count"`
}
