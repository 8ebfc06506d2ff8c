package fees

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byronedwards-dev/arbscope/internal/domain"
)

type fakeFeeStore struct {
	fees []domain.PlatformFees
	err  error
}

func (s *fakeFeeStore) GetAll(context.Context) ([]domain.PlatformFees, error) {
	return s.fees, s.err
}

func (s *fakeFeeStore) Get(_ context.Context, venue domain.Venue) (domain.PlatformFees, error) {
	for _, f := range s.fees {
		if f.Venue == venue {
			return f, nil
		}
	}
	return domain.PlatformFees{}, domain.ErrNotFound
}

func (s *fakeFeeStore) Upsert(_ context.Context, f domain.PlatformFees) error {
	s.fees = append(s.fees, f)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestProvider_FallbackBeforeReload(t *testing.T) {
	p := NewProvider(&fakeFeeStore{}, testLogger())
	assert.InDelta(t, FallbackFee, p.Fee(domain.VenuePolymarket, false), 1e-9)
}

func TestProvider_ReloadAndFee(t *testing.T) {
	store := &fakeFeeStore{fees: []domain.PlatformFees{
		{Venue: domain.VenuePolymarket, TakerFee: 0.02, MakerFee: 0.005, SettlementFee: 0.001},
		{Venue: domain.VenueKalshi, TakerFee: 0.01, MakerFee: 0.0, SettlementFee: 0.0},
	}}
	p := NewProvider(store, testLogger())
	require.NoError(t, p.Reload(context.Background()))

	assert.InDelta(t, 0.021, p.Fee(domain.VenuePolymarket, false), 1e-9)
	assert.InDelta(t, 0.006, p.Fee(domain.VenuePolymarket, true), 1e-9)
	assert.InDelta(t, 0.01, p.Fee(domain.VenueKalshi, false), 1e-9)
}

func TestProvider_UnknownVenueFallsBack(t *testing.T) {
	store := &fakeFeeStore{fees: []domain.PlatformFees{
		{Venue: domain.VenuePolymarket, TakerFee: 0.02},
	}}
	p := NewProvider(store, testLogger())
	require.NoError(t, p.Reload(context.Background()))

	assert.InDelta(t, FallbackFee, p.Fee(domain.Venue("unknown-venue"), false), 1e-9)
}

func TestProvider_CombinedFee(t *testing.T) {
	store := &fakeFeeStore{fees: []domain.PlatformFees{
		{Venue: domain.VenuePolymarket, TakerFee: 0.02},
		{Venue: domain.VenueKalshi, TakerFee: 0.01},
	}}
	p := NewProvider(store, testLogger())
	require.NoError(t, p.Reload(context.Background()))

	assert.InDelta(t, 0.03, p.CombinedFee(domain.VenuePolymarket, domain.VenueKalshi), 1e-9)
}

func TestProvider_ReloadErrorKeepsCache(t *testing.T) {
	store := &fakeFeeStore{fees: []domain.PlatformFees{
		{Venue: domain.VenueKalshi, TakerFee: 0.015},
	}}
	p := NewProvider(store, testLogger())
	require.NoError(t, p.Reload(context.Background()))

	store.err = errors.New("connection refused")
	require.Error(t, p.Reload(context.Background()))

	// Previous schedule survives a failed reload.
	assert.InDelta(t, 0.015, p.Fee(domain.VenueKalshi, false), 1e-9)
}

func TestProvider_ReloadDropsRemovedVenue(t *testing.T) {
	store := &fakeFeeStore{fees: []domain.PlatformFees{
		{Venue: domain.VenueKalshi, TakerFee: 0.015},
	}}
	p := NewProvider(store, testLogger())
	require.NoError(t, p.Reload(context.Background()))

	store.fees = nil
	require.NoError(t, p.Reload(context.Background()))
	assert.InDelta(t, FallbackFee, p.Fee(domain.VenueKalshi, false), 1e-9)
}
