package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

// VolumeStore implements domain.VolumeStore using PostgreSQL.
type VolumeStore struct {
	pool *pgxpool.Pool
}

// NewVolumeStore creates a VolumeStore backed by the given pool.
func NewVolumeStore(pool *pgxpool.Pool) *VolumeStore {
	return &VolumeStore{pool: pool}
}

// Record upserts the market's bucket for the observation hour. Within a
// bucket the latest observation wins; the ingestion feed reports a rolling
// figure, so later observations are fresher, not additive.
func (s *VolumeStore) Record(ctx context.Context, b domain.VolumeBucket) error {
	const query = `
		INSERT INTO volume_history (market_id, bucket_start, volume_usd)
		VALUES ($1, $2, $3)
		ON CONFLICT (market_id, bucket_start) DO UPDATE SET
			volume_usd = EXCLUDED.volume_usd`

	_, err := s.pool.Exec(ctx, query,
		b.MarketID, b.BucketStart.UTC().Truncate(time.Hour), b.VolumeUSD,
	)
	if err != nil {
		return fmt.Errorf("postgres: record volume %s: %w", b.MarketID, err)
	}
	return nil
}

// ListRecent returns up to window buckets for the market in ascending bucket
// order, ending at the most recent.
func (s *VolumeStore) ListRecent(ctx context.Context, marketID string, window int) ([]domain.VolumeBucket, error) {
	const query = `
		SELECT market_id, bucket_start, volume_usd
		FROM (
			SELECT market_id, bucket_start, volume_usd
			FROM volume_history
			WHERE market_id = $1
			ORDER BY bucket_start DESC
			LIMIT $2
		) recent
		ORDER BY bucket_start ASC`

	rows, err := s.pool.Query(ctx, query, marketID, window)
	if err != nil {
		return nil, fmt.Errorf("postgres: list volume %s: %w", marketID, err)
	}
	defer rows.Close()

	var buckets []domain.VolumeBucket
	for rows.Next() {
		var b domain.VolumeBucket
		if err := rows.Scan(&b.MarketID, &b.BucketStart, &b.VolumeUSD); err != nil {
			return nil, fmt.Errorf("postgres: scan volume bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate volume buckets: %w", err)
	}
	return buckets, nil
}

// ListBefore returns all buckets older than the cutoff in bucket order, for
// archival before pruning.
func (s *VolumeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.VolumeBucket, error) {
	const query = `
		SELECT market_id, bucket_start, volume_usd
		FROM volume_history
		WHERE bucket_start < $1
		ORDER BY bucket_start ASC, market_id ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list volume before: %w", err)
	}
	defer rows.Close()

	var buckets []domain.VolumeBucket
	for rows.Next() {
		var b domain.VolumeBucket
		if err := rows.Scan(&b.MarketID, &b.BucketStart, &b.VolumeUSD); err != nil {
			return nil, fmt.Errorf("postgres: scan volume bucket: %w", err)
		}
		buckets = append(buckets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate volume buckets: %w", err)
	}
	return buckets, nil
}

// DeleteBefore prunes buckets older than the cutoff.
func (s *VolumeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	const query = `DELETE FROM volume_history WHERE bucket_start < $1`

	tag, err := s.pool.Exec(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: prune volume history: %w", err)
	}
	return tag.RowsAffected(), nil
}
