package relay

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// KeySelector hands out upstream credentials under a usage cap. A
// selection holds a reservation against the cap until it is settled by
// RecordUsage (fetch served) or Release (fetch failed).
type KeySelector interface {
	// Select returns the index and value of the next usable key.
	Select() (int, string, error)
	// RecordUsage commits the reservation and increments the ledger
	// count for a key, best-effort.
	RecordUsage(index int)
	// Release drops the reservation without charging the key.
	Release(index int)
	// Empty reports whether any keys are configured at all.
	Empty() bool
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Publisher pushes completion events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
