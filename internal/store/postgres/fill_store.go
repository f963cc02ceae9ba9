package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

// FillStore implements domain.FillStore using PostgreSQL.
type FillStore struct {
	pool *pgxpool.Pool
}

// NewFillStore creates a new FillStore backed by the given connection pool.
func NewFillStore(pool *pgxpool.Pool) *FillStore {
	return &FillStore{pool: pool}
}

// InsertBatch appends fills to the history in a single batch operation.
func (s *FillStore) InsertBatch(ctx context.Context, fills []domain.Fill) error {
	if len(fills) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO fills (
			market_id, order_id, side, price, quantity, cost, buyer, seller, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	for _, f := range fills {
		batch.Queue(query,
			f.MarketID, f.OrderID, string(f.Side),
			f.Price, f.Quantity, f.Cost,
			f.Buyer, f.Seller, f.CreatedAt,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range fills {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert fill batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByMarket returns fills for a market, newest first, with pagination.
func (s *FillStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Fill, error) {
	query := `
		SELECT market_id, order_id, side, price, quantity, cost, buyer, seller, created_at
		FROM fills WHERE market_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{marketID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fills %s: %w", marketID, err)
	}
	defer rows.Close()

	var fills []domain.Fill
	for rows.Next() {
		var (
			f    domain.Fill
			side string
		)
		if err := rows.Scan(
			&f.MarketID, &f.OrderID, &side,
			&f.Price, &f.Quantity, &f.Cost,
			&f.Buyer, &f.Seller, &f.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan fill: %w", err)
		}
		f.Side = domain.Side(side)
		fills = append(fills, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list fills rows %s: %w", marketID, err)
	}
	return fills, nil
}
