package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver exports a settled market's trading history to blob storage.
type Archiver interface {
	// ArchiveMarket uploads the market's fills and ledger entries and returns
	// the number of records written.
	ArchiveMarket(ctx context.Context, marketID string) (int64, error)
}
