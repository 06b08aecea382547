// Package storage persists product records and run artifacts.
package storage

import (
	"context"

	"github.com/IshaanNene/PharmaScrape/internal/types"
)

// Sink is a secondary backend that mirrors every saved record.
type Sink interface {
	// Store upserts a batch of records.
	Store(ctx context.Context, recs []*types.ProductRecord) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the sink identifier.
	Name() string
}
