package crawler

import (
	"context"
	"io"
	"time"
)

// Fetcher performs a single HTTP call and returns the buffered body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// StreamFetcher opens a response body for incremental reads. Callers close the reader.
type StreamFetcher interface {
	Open(ctx context.Context, request FetchRequest) (io.ReadCloser, error)
}

// Hasher fingerprints a stored file.
type Hasher interface {
	HashFile(path string) (string, error)
}

// ScratchStore is the ephemeral directory one profile downloads into.
type ScratchStore interface {
	Dir() string
	Put(name string, data io.Reader) (string, error)
	Purge() error
}

// Site is the extraction and download behavior bound to one site profile.
type Site interface {
	Kind() ProfileKind
	OpenSeed(ctx context.Context, seed string) (Document, error)
	Links(ctx context.Context, seed Document) (LinkSet, error)
	Download(ctx context.Context, seed Document, link string) (Artifact, error)
}

// ResultStore persists outcome batches atomically.
type ResultStore interface {
	InsertBatch(ctx context.Context, records []StoredRecord) (int, error)
}

// Publisher pushes ingestion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces record and batch IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
