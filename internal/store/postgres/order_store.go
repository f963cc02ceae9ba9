package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gridironmarkets/gridiron/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given connection pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

// ReplaceBook atomically replaces the stored resident orders for a market.
// The in-memory book is the source of truth, so rows are swapped wholesale
// rather than diffed.
func (s *OrderStore) ReplaceBook(ctx context.Context, marketID string, orders []domain.Order) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin replace book %s: %w", marketID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM orders WHERE market_id = $1`, marketID); err != nil {
		return fmt.Errorf("postgres: clear book %s: %w", marketID, err)
	}

	if len(orders) > 0 {
		batch := &pgx.Batch{}
		const query = `
			INSERT INTO orders (
				market_id, order_id, owner, payout_account, side, price, quantity
			) VALUES ($1, $2, $3, $4, $5, $6, $7)`
		for _, o := range orders {
			batch.Queue(query,
				marketID, o.ID, o.Owner, string(o.PayoutAccount),
				string(o.Side), o.Price, o.Quantity,
			)
		}

		br := tx.SendBatch(ctx, batch)
		for i := range orders {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return fmt.Errorf("postgres: insert book %s order %d: %w", marketID, i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("postgres: close book batch %s: %w", marketID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit replace book %s: %w", marketID, err)
	}
	return nil
}

// ListByMarket returns the stored resident orders for a market.
func (s *OrderStore) ListByMarket(ctx context.Context, marketID string) ([]domain.Order, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT order_id, owner, payout_account, side, price, quantity
		FROM orders WHERE market_id = $1 ORDER BY order_id`, marketID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list orders %s: %w", marketID, err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var (
			o            domain.Order
			payout, side string
		)
		if err := rows.Scan(&o.ID, &o.Owner, &payout, &side, &o.Price, &o.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan order: %w", err)
		}
		o.PayoutAccount = domain.AccountID(payout)
		o.Side = domain.Side(side)
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list orders rows %s: %w", marketID, err)
	}
	return orders, nil
}
