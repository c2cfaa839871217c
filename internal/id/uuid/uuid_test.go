package uuid

import (
	"errors"
	"testing"
	"time"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewID ensures generated IDs are unique, valid and time-ordered UUID7s.
func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	id2, err := gen.NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique IDs, got %s and %s", id1, id2)
	}
	parsed, err := goUUID.Parse(id1)
	if err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected version 7, got %d", parsed.Version())
	}
	if id2 <= id1 {
		t.Fatalf("expected %s to sort after %s", id2, id1)
	}
}

func TestGeneratorNewIDError(t *testing.T) {
	t.Parallel()

	gen := &Generator{source: func() (goUUID.UUID, error) {
		return goUUID.Nil, errors.New("entropy exhausted")
	}}
	if _, err := gen.NewID(); err == nil {
		t.Fatal("expected error from failing source")
	}
}

func TestTimestamp(t *testing.T) {
	t.Parallel()

	before := time.Now().Add(-time.Second)
	id, err := New().NewID()
	if err != nil {
		t.Fatalf("NewID() error = %v", err)
	}
	ts, err := Timestamp(id)
	if err != nil {
		t.Fatalf("Timestamp() error = %v", err)
	}
	if ts.Before(before) || ts.After(time.Now().Add(time.Second)) {
		t.Fatalf("timestamp %v out of range", ts)
	}

	if _, err := Timestamp(goUUID.NewString()); err == nil {
		t.Fatal("expected error for a v4 uuid")
	}
	if _, err := Timestamp("not-a-uuid"); err == nil {
		t.Fatal("expected parse error")
	}
}
