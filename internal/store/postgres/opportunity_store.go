package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// uniqueViolation is the PostgreSQL error code raised when the open-identity
// partial unique index rejects a duplicate insert.
const uniqueViolation = "23505"

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, arb_type, identity, quality,
	gross_spread_pct, total_fees_pct, net_spread_pct,
	max_deployable_usd, weighted_profit_usd, details,
	detected_at, last_seen_at, snapshot_count, duration_seconds, resolved_at`

// Insert stores a new opportunity row. It returns domain.ErrAlreadyExists
// when an open row for the same (type, identity) already exists.
func (s *OpportunityStore) Insert(ctx context.Context, opp domain.ArbOpportunity) error {
	detailsJSON, err := json.Marshal(opp.Details)
	if err != nil {
		return fmt.Errorf("postgres: marshal details %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO arb_opportunities (
			id, arb_type, identity, quality,
			gross_spread_pct, total_fees_pct, net_spread_pct,
			max_deployable_usd, weighted_profit_usd, details,
			detected_at, last_seen_at, snapshot_count, duration_seconds, resolved_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14, $15
		)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.Type, opp.Identity, opp.Quality,
		opp.GrossSpreadPct, opp.TotalFeesPct, opp.NetSpreadPct,
		opp.MaxDeployableUSD, opp.WeightedProfitUSD, detailsJSON,
		opp.DetectedAt, opp.LastSeenAt, opp.SnapshotCount, opp.DurationSeconds, opp.ResolvedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("postgres: insert opportunity %s/%s: %w",
				opp.Type, opp.Identity, domain.ErrAlreadyExists)
		}
		return fmt.Errorf("postgres: insert opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// GetOpen returns the single open row for (typ, identity), or
// domain.ErrNotFound.
func (s *OpportunityStore) GetOpen(ctx context.Context, typ domain.ArbType, identity string) (domain.ArbOpportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM arb_opportunities
		WHERE arb_type = $1 AND identity = $2 AND resolved_at IS NULL`

	row := s.pool.QueryRow(ctx, query, typ, identity)
	opp, err := scanOpportunity(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ArbOpportunity{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ArbOpportunity{}, fmt.Errorf("postgres: get open %s/%s: %w", typ, identity, err)
	}
	return opp, nil
}

// Update rewrites the mutable fields of an existing row.
func (s *OpportunityStore) Update(ctx context.Context, opp domain.ArbOpportunity) error {
	detailsJSON, err := json.Marshal(opp.Details)
	if err != nil {
		return fmt.Errorf("postgres: marshal details %s: %w", opp.ID, err)
	}

	const query = `
		UPDATE arb_opportunities SET
			quality             = $2,
			gross_spread_pct    = $3,
			total_fees_pct      = $4,
			net_spread_pct      = $5,
			max_deployable_usd  = $6,
			weighted_profit_usd = $7,
			details             = $8,
			last_seen_at        = $9,
			snapshot_count      = $10,
			duration_seconds    = $11,
			resolved_at         = $12
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		opp.ID, opp.Quality,
		opp.GrossSpreadPct, opp.TotalFeesPct, opp.NetSpreadPct,
		opp.MaxDeployableUSD, opp.WeightedProfitUSD, detailsJSON,
		opp.LastSeenAt, opp.SnapshotCount, opp.DurationSeconds, opp.ResolvedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity %s: %w", opp.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// CloseStale resolves every open row whose last observation predates the
// cutoff. duration_seconds is deliberately untouched: it was finalized by
// the last Track and must not stretch to reaper time.
func (s *OpportunityStore) CloseStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		UPDATE arb_opportunities SET
			resolved_at = NOW()
		WHERE resolved_at IS NULL AND last_seen_at < $1`

	tag, err := s.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: close stale: %w", err)
	}
	return tag.RowsAffected(), nil
}

// List returns opportunities matching the filter, best first: net spread
// then deployable capital, both descending.
func (s *OpportunityStore) List(ctx context.Context, f domain.OpportunityFilter) ([]domain.ArbOpportunity, error) {
	query := `SELECT ` + oppSelectCols + ` FROM arb_opportunities WHERE 1=1`
	args := []any{}
	argIdx := 1

	switch f.Status {
	case domain.StatusOpen:
		query += " AND resolved_at IS NULL"
	case domain.StatusClosed:
		query += " AND resolved_at IS NOT NULL"
	}
	if f.Type != "" {
		query += fmt.Sprintf(" AND arb_type = $%d", argIdx)
		args = append(args, f.Type)
		argIdx++
	}
	if f.Quality != "" {
		query += fmt.Sprintf(" AND quality = $%d", argIdx)
		args = append(args, f.Quality)
		argIdx++
	}
	if f.MinNetSpreadPct > 0 {
		query += fmt.Sprintf(" AND net_spread_pct >= $%d", argIdx)
		args = append(args, f.MinNetSpreadPct)
		argIdx++
	}
	if f.MinDeployableUSD > 0 {
		query += fmt.Sprintf(" AND max_deployable_usd >= $%d", argIdx)
		args = append(args, f.MinDeployableUSD)
		argIdx++
	}

	query += " ORDER BY net_spread_pct DESC, max_deployable_usd DESC"

	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, f.Limit)
	}

	return s.queryMany(ctx, query, args...)
}

// ListClosedBefore returns closed rows resolved strictly before the cutoff,
// oldest first, for archival.
func (s *OpportunityStore) ListClosedBefore(ctx context.Context, before time.Time) ([]domain.ArbOpportunity, error) {
	query := `SELECT ` + oppSelectCols + `
		FROM arb_opportunities
		WHERE resolved_at IS NOT NULL AND resolved_at < $1
		ORDER BY resolved_at ASC`
	return s.queryMany(ctx, query, before)
}

func (s *OpportunityStore) queryMany(ctx context.Context, query string, args ...any) ([]domain.ArbOpportunity, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.ArbOpportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate opportunities: %w", err)
	}
	return opps, nil
}

// scanOpportunity reads one row and validates the details payload through
// its tag; a row whose details do not match their kind is a data fault and
// surfaces as an error rather than a silently misshapen record.
func scanOpportunity(row pgx.Row) (domain.ArbOpportunity, error) {
	var opp domain.ArbOpportunity
	var detailsJSON []byte

	if err := row.Scan(
		&opp.ID, &opp.Type, &opp.Identity, &opp.Quality,
		&opp.GrossSpreadPct, &opp.TotalFeesPct, &opp.NetSpreadPct,
		&opp.MaxDeployableUSD, &opp.WeightedProfitUSD, &detailsJSON,
		&opp.DetectedAt, &opp.LastSeenAt, &opp.SnapshotCount, &opp.DurationSeconds, &opp.ResolvedAt,
	); err != nil {
		return domain.ArbOpportunity{}, err
	}

	if err := json.Unmarshal(detailsJSON, &opp.Details); err != nil {
		return domain.ArbOpportunity{}, fmt.Errorf("decode details %s: %w", opp.ID, err)
	}
	if err := opp.Details.Validate(); err != nil {
		return domain.ArbOpportunity{}, fmt.Errorf("details %s: %w", opp.ID, err)
	}
	return opp, nil
}
