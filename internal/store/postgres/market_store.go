package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, authority, collateral_asset, yes_asset, no_asset,
			vault, expiry_ts, status, outcome, created_at, resolved_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10, $11, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status      = EXCLUDED.status,
			outcome     = EXCLUDED.outcome,
			resolved_at = EXCLUDED.resolved_at,
			updated_at  = NOW()`

	_, err := s.pool.Exec(ctx, query,
		m.ID, m.Authority,
		string(m.CollateralAsset), string(m.YesAsset), string(m.NoAsset),
		string(m.Vault), m.ExpiryTS,
		string(m.Status), string(m.Outcome),
		m.CreatedAt, m.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

const marketCols = `id, authority, collateral_asset, yes_asset, no_asset,
	vault, expiry_ts, status, outcome, created_at, resolved_at`

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m                          domain.Market
		collateral, yes, no, vault string
		status, outcome            string
	)
	err := row.Scan(
		&m.ID, &m.Authority, &collateral, &yes, &no,
		&vault, &m.ExpiryTS, &status, &outcome,
		&m.CreatedAt, &m.ResolvedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.CollateralAsset = domain.AssetID(collateral)
	m.YesAsset = domain.AssetID(yes)
	m.NoAsset = domain.AssetID(no)
	m.Vault = domain.AccountID(vault)
	m.Status = domain.MarketStatus(status)
	m.Outcome = domain.Outcome(outcome)
	return m, nil
}

// GetByID retrieves a market by its primary key.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// List returns markets ordered newest first with pagination.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets ORDER BY created_at DESC`
	args := []any{}
	argIdx := 1

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
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
