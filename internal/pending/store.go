// Package pending holds analysis results awaiting user confirmation.
// Entries expire on their own; a confirm or reject that arrives after expiry
// finds nothing. Take removes the entry atomically so that concurrent
// confirms resolve to a single winner.
package pending

import (
	"context"
	"errors"
	"time"

	"github.com/docvault/docvault/internal/analyze"
)

// ErrNotFound covers missing, expired, and already consumed entries alike.
var ErrNotFound = errors.New("pending entry not found")

type Entry struct {
	ID            string         `json:"id"`
	OwnerID       string         `json:"ownerId"`
	DeclaredType  string         `json:"declaredType"`
	ExtractedText string         `json:"extractedText"`
	Analysis      analyze.Result `json:"analysis"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Store is the pending-confirmation backend. Put stores an entry under its
// ID with the store's TTL. Take removes and returns the entry; only one
// caller can win a Take for a given ID.
type Store interface {
	Put(ctx context.Context, e Entry) error
	Get(ctx context.Context, id string) (Entry, error)
	Take(ctx context.Context, id string) (Entry, error)
	Delete(ctx context.Context, id string) error
}
