package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

// Archiver implements domain.SettlementArchiver by serializing a resolved
// market's final state and full fill history to JSONL and uploading the
// result to S3.
//
// The report is written once per market, at resolution time, and is the
// durable record of how the market settled. Invalid resolutions are archived
// like any other: the report is how holders of a locked market find out what
// happened.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	audit  domain.AuditStore
}

// NewArchiver creates an Archiver. audit may be nil, in which case no audit
// entry is written after upload; reader may be nil, in which case archived
// reports cannot be read back.
func NewArchiver(writer domain.BlobWriter, reader domain.BlobReader, audit domain.AuditStore) *Archiver {
	return &Archiver{writer: writer, reader: reader, audit: audit}
}

// settlementHeader is the first JSONL line of a settlement report.
type settlementHeader struct {
	Kind            string     `json:"kind"`
	MarketID        string     `json:"market_id"`
	Outcome         string     `json:"outcome"`
	Status          string     `json:"status"`
	CollateralAsset string     `json:"collateral_asset"`
	YesAsset        string     `json:"yes_asset"`
	NoAsset         string     `json:"no_asset"`
	ExpiryTS        int64      `json:"expiry_ts"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	FillCount       int        `json:"fill_count"`
}

// ArchiveSettlement uploads the settlement report for a resolved market and
// returns the object path. The report is JSONL: one header line describing
// the market, followed by one line per fill.
func (a *Archiver) ArchiveSettlement(ctx context.Context, market domain.Market, fills []domain.Fill) (string, error) {
	header := settlementHeader{
		Kind:            "settlement",
		MarketID:        market.ID,
		Outcome:         string(market.Outcome),
		Status:          string(market.Status),
		CollateralAsset: string(market.CollateralAsset),
		YesAsset:        string(market.YesAsset),
		NoAsset:         string(market.NoAsset),
		ExpiryTS:        market.ExpiryTS,
		ResolvedAt:      market.ResolvedAt,
		FillCount:       len(fills),
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header); err != nil {
		return "", fmt.Errorf("s3blob: settlement header %s: %w", market.ID, err)
	}
	for i, f := range fills {
		if err := enc.Encode(f); err != nil {
			return "", fmt.Errorf("s3blob: settlement fill %d for %s: %w", i, market.ID, err)
		}
	}

	path := settlementPath(market)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf.Bytes()), "application/x-ndjson"); err != nil {
		return "", fmt.Errorf("s3blob: settlement upload %s: %w", market.ID, err)
	}

	if a.audit != nil {
		if err := a.audit.Log(ctx, "archive.settlement", map[string]any{
			"path":    path,
			"market":  market.ID,
			"outcome": string(market.Outcome),
			"fills":   len(fills),
		}); err != nil {
			return path, fmt.Errorf("s3blob: settlement audit log %s: %w", market.ID, err)
		}
	}

	return path, nil
}

// OpenSettlement streams back the archived settlement report for a resolved
// market. The caller must close the returned reader.
func (a *Archiver) OpenSettlement(ctx context.Context, market domain.Market) (io.ReadCloser, error) {
	if a.reader == nil {
		return nil, fmt.Errorf("s3blob: settlement for %s: %w", market.ID, domain.ErrNotFound)
	}
	rc, err := a.reader.Get(ctx, settlementPath(market))
	if err != nil {
		return nil, fmt.Errorf("s3blob: settlement for %s: %w", market.ID, err)
	}
	return rc, nil
}

// settlementPath builds the S3 key for a settlement report, partitioned by
// the year-month of resolution.
//
//	settlements/2026-08/mkt-1234.jsonl
func settlementPath(market domain.Market) string {
	ts := time.Now()
	if market.ResolvedAt != nil {
		ts = *market.ResolvedAt
	}
	return fmt.Sprintf("settlements/%s/%s.jsonl", ts.Format("2006-01"), market.ID)
}

// Compile-time interface checks.
var (
	_ domain.SettlementArchiver = (*Archiver)(nil)
	_ domain.SettlementReader   = (*Archiver)(nil)
)
