package domain

import (
	"context"
	"io"
)

// BlobWriter uploads objects to blob storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// BlobReader downloads objects from blob storage.
type BlobReader interface {
	Get(ctx context.Context, path string) (io.ReadCloser, error)
}

// SettlementArchiver writes a settlement report for a resolved market to
// durable storage.
type SettlementArchiver interface {
	ArchiveSettlement(ctx context.Context, market Market, fills []Fill) (string, error)
}

// SettlementReader retrieves a previously archived settlement report. It
// returns ErrNotFound when no report exists for the market.
type SettlementReader interface {
	OpenSettlement(ctx context.Context, market Market) (io.ReadCloser, error)
}
