package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// FeeStore implements domain.FeeStore using PostgreSQL.
type FeeStore struct {
	pool *pgxpool.Pool
}

// NewFeeStore creates a FeeStore backed by the given pool.
func NewFeeStore(pool *pgxpool.Pool) *FeeStore {
	return &FeeStore{pool: pool}
}

const feeSelectCols = `venue, taker_fee, maker_fee, settlement_fee,
	withdrawal_fee, notes, last_verified_at, updated_at`

// GetAll returns every venue's fee schedule.
func (s *FeeStore) GetAll(ctx context.Context) ([]domain.PlatformFees, error) {
	query := `SELECT ` + feeSelectCols + ` FROM platform_fees ORDER BY venue`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list fees: %w", err)
	}
	defer rows.Close()

	var all []domain.PlatformFees
	for rows.Next() {
		f, err := scanFees(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan fees: %w", err)
		}
		all = append(all, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate fees: %w", err)
	}
	return all, nil
}

// Get returns one venue's fee schedule, or domain.ErrNotFound.
func (s *FeeStore) Get(ctx context.Context, venue domain.Venue) (domain.PlatformFees, error) {
	query := `SELECT ` + feeSelectCols + ` FROM platform_fees WHERE venue = $1`

	f, err := scanFees(s.pool.QueryRow(ctx, query, venue))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PlatformFees{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PlatformFees{}, fmt.Errorf("postgres: get fees %s: %w", venue, err)
	}
	return f, nil
}

// Upsert inserts or replaces a venue's fee schedule.
func (s *FeeStore) Upsert(ctx context.Context, f domain.PlatformFees) error {
	const query = `
		INSERT INTO platform_fees (
			venue, taker_fee, maker_fee, settlement_fee,
			withdrawal_fee, notes, last_verified_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (venue) DO UPDATE SET
			taker_fee        = EXCLUDED.taker_fee,
			maker_fee        = EXCLUDED.maker_fee,
			settlement_fee   = EXCLUDED.settlement_fee,
			withdrawal_fee   = EXCLUDED.withdrawal_fee,
			notes            = EXCLUDED.notes,
			last_verified_at = EXCLUDED.last_verified_at,
			updated_at       = NOW()`

	_, err := s.pool.Exec(ctx, query,
		f.Venue, f.TakerFee, f.MakerFee, f.SettlementFee,
		f.WithdrawalFee, f.Notes, nullableTime(f.LastVerified),
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert fees %s: %w", f.Venue, err)
	}
	return nil
}

func scanFees(row pgx.Row) (domain.PlatformFees, error) {
	var f domain.PlatformFees
	var lastVerified, updatedAt *time.Time
	if err := row.Scan(
		&f.Venue, &f.TakerFee, &f.MakerFee, &f.SettlementFee,
		&f.WithdrawalFee, &f.Notes, &lastVerified, &updatedAt,
	); err != nil {
		return domain.PlatformFees{}, err
	}
	if lastVerified != nil {
		f.LastVerified = *lastVerified
	}
	if updatedAt != nil {
		f.UpdatedAt = *updatedAt
	}
	return f, nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
