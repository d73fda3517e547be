package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/idexbot/internal/domain"
)

// L1UpdateStore implements domain.L1UpdateStore using PostgreSQL.
type L1UpdateStore struct {
	pool *pgxpool.Pool
}

// NewL1UpdateStore creates a new L1UpdateStore backed by the given connection pool.
func NewL1UpdateStore(pool *pgxpool.Pool) *L1UpdateStore {
	return &L1UpdateStore{pool: pool}
}

const l1SelectCols = `id, market, sequence, bid_price, bid_size,
	ask_price, ask_size, base_reserve, quote_reserve, timestamp`

func scanL1Rows(rows pgx.Rows) ([]domain.L1Update, error) {
	var updates []domain.L1Update
	for rows.Next() {
		var u domain.L1Update
		if err := rows.Scan(
			&u.ID, &u.Market, &u.Sequence,
			&u.BidPrice, &u.BidSize, &u.AskPrice, &u.AskSize,
			&u.BaseReserve, &u.QuoteReserve, &u.Timestamp,
		); err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}
	return updates, rows.Err()
}

// InsertBatch inserts multiple updates efficiently using pgx Batch.
// Duplicate updates (same market and sequence, which happens when a resync
// replays a book state already recorded) are silently skipped via
// ON CONFLICT DO NOTHING.
func (s *L1UpdateStore) InsertBatch(ctx context.Context, updates []domain.L1Update) error {
	if len(updates) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO l1_updates (
			market, sequence, bid_price, bid_size,
			ask_price, ask_size, base_reserve, quote_reserve, timestamp
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9
		) ON CONFLICT (market, sequence) DO NOTHING`

	for _, u := range updates {
		batch.Queue(query,
			u.Market, u.Sequence,
			u.BidPrice, u.BidSize, u.AskPrice, u.AskSize,
			u.BaseReserve, u.QuoteReserve, u.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range updates {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert l1 update batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListBefore returns all updates with timestamp strictly before the given
// time, oldest first, for archiving.
func (s *L1UpdateStore) ListBefore(ctx context.Context, before time.Time) ([]domain.L1Update, error) {
	query := `SELECT ` + l1SelectCols + ` FROM l1_updates WHERE timestamp < $1 ORDER BY timestamp ASC`
	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list l1 updates before: %w", err)
	}
	defer rows.Close()

	updates, err := scanL1Rows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan l1 updates before: %w", err)
	}
	return updates, nil
}

// ListByMarket returns the most recent updates for a market, newest first.
func (s *L1UpdateStore) ListByMarket(ctx context.Context, market string, limit int) ([]domain.L1Update, error) {
	query := `SELECT ` + l1SelectCols + ` FROM l1_updates WHERE market = $1 ORDER BY timestamp DESC`
	args := []any{market}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list l1 updates by market: %w", err)
	}
	defer rows.Close()

	updates, err := scanL1Rows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan l1 updates by market: %w", err)
	}
	return updates, nil
}

// DeleteBefore deletes all updates with timestamp before the given time.
// Returns the number of rows deleted.
func (s *L1UpdateStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM l1_updates WHERE timestamp < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete l1 updates before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Compile-time interface check.
var _ domain.L1UpdateStore = (*L1UpdateStore)(nil)
