package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/byronedwards-dev/arbscope/internal/arb"
	"github.com/byronedwards-dev/arbscope/internal/domain"
	"github.com/byronedwards-dev/arbscope/internal/fees"
	"github.com/byronedwards-dev/arbscope/internal/track"
	"github.com/byronedwards-dev/arbscope/internal/volume"
)

// fakeOppStore is an in-memory OpportunityStore with the same
// one-open-row-per-identity semantics as the Postgres implementation.
type fakeOppStore struct {
	mu        sync.Mutex
	rows      map[string]domain.ArbOpportunity
	insertErr error
}

func newFakeOppStore() *fakeOppStore {
	return &fakeOppStore{rows: map[string]domain.ArbOpportunity{}}
}

func (s *fakeOppStore) Insert(_ context.Context, opp domain.ArbOpportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.insertErr != nil {
		return s.insertErr
	}
	for _, r := range s.rows {
		if r.Type == opp.Type && r.Identity == opp.Identity && r.Open() {
			return domain.ErrAlreadyExists
		}
	}
	s.rows[opp.ID] = opp
	return nil
}

func (s *fakeOppStore) GetOpen(_ context.Context, typ domain.ArbType, identity string) (domain.ArbOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.Type == typ && r.Identity == identity && r.Open() {
			return r, nil
		}
	}
	return domain.ArbOpportunity{}, domain.ErrNotFound
}

func (s *fakeOppStore) Update(_ context.Context, opp domain.ArbOpportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[opp.ID]; !ok {
		return domain.ErrNotFound
	}
	s.rows[opp.ID] = opp
	return nil
}

func (s *fakeOppStore) CloseStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, r := range s.rows {
		if r.Open() && r.LastSeenAt.Before(cutoff) {
			now := time.Now().UTC()
			r.ResolvedAt = &now
			s.rows[id] = r
			n++
		}
	}
	return n, nil
}

func (s *fakeOppStore) List(_ context.Context, f domain.OpportunityFilter) ([]domain.ArbOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ArbOpportunity
	for _, r := range s.rows {
		if f.Status == domain.StatusOpen && !r.Open() {
			continue
		}
		if f.Status == domain.StatusClosed && r.Open() {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeOppStore) ListClosedBefore(_ context.Context, before time.Time) ([]domain.ArbOpportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ArbOpportunity
	for _, r := range s.rows {
		if !r.Open() && r.ResolvedAt.Before(before) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *fakeOppStore) openCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.rows {
		if r.Open() {
			n++
		}
	}
	return n
}

// fakeFeeStore serves a fixed schedule.
type fakeFeeStore struct {
	schedule []domain.PlatformFees
}

func (s *fakeFeeStore) GetAll(context.Context) ([]domain.PlatformFees, error) {
	return s.schedule, nil
}

func (s *fakeFeeStore) Get(_ context.Context, venue domain.Venue) (domain.PlatformFees, error) {
	for _, f := range s.schedule {
		if f.Venue == venue {
			return f, nil
		}
	}
	return domain.PlatformFees{}, domain.ErrNotFound
}

func (s *fakeFeeStore) Upsert(_ context.Context, f domain.PlatformFees) error {
	s.schedule = append(s.schedule, f)
	return nil
}

// fakeVolumeStore keeps per-market buckets in insertion order.
type fakeVolumeStore struct {
	mu      sync.Mutex
	buckets map[string][]domain.VolumeBucket
}

func newFakeVolumeStore() *fakeVolumeStore {
	return &fakeVolumeStore{buckets: map[string][]domain.VolumeBucket{}}
}

func (s *fakeVolumeStore) Record(_ context.Context, b domain.VolumeBucket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.buckets[b.MarketID] {
		if existing.BucketStart.Equal(b.BucketStart) {
			s.buckets[b.MarketID][i] = b
			return nil
		}
	}
	s.buckets[b.MarketID] = append(s.buckets[b.MarketID], b)
	return nil
}

func (s *fakeVolumeStore) ListRecent(_ context.Context, marketID string, window int) ([]domain.VolumeBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.buckets[marketID]
	if len(out) > window {
		out = out[len(out)-window:]
	}
	return out, nil
}

func (s *fakeVolumeStore) ListBefore(_ context.Context, before time.Time) ([]domain.VolumeBucket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.VolumeBucket
	for _, list := range s.buckets {
		for _, b := range list {
			if b.BucketStart.Before(before) {
				out = append(out, b)
			}
		}
	}
	return out, nil
}

func (s *fakeVolumeStore) DeleteBefore(_ context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, list := range s.buckets {
		var kept []domain.VolumeBucket
		for _, b := range list {
			if b.BucketStart.Before(before) {
				n++
				continue
			}
			kept = append(kept, b)
		}
		s.buckets[id] = kept
	}
	return n, nil
}

// memBus is a minimal in-memory SignalBus.
type memBus struct {
	mu      sync.Mutex
	ch      chan []byte
	streams map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{ch: make(chan []byte, 16), streams: map[string][][]byte{}}
}

func (b *memBus) Publish(_ context.Context, _ string, payload []byte) error {
	b.ch <- payload
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *memBus) StreamRead(_ context.Context, stream string, _ string, count int) ([]domain.StreamMessage, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []domain.StreamMessage
	for i, p := range b.streams[stream] {
		if count > 0 && len(out) >= count {
			break
		}
		out = append(out, domain.StreamMessage{ID: string(rune('0' + i)), Payload: p})
	}
	return out, nil
}

func newTestEngine(t *testing.T, store *fakeOppStore, volumes domain.VolumeStore, bus domain.SignalBus) *Engine {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	feeStore := &fakeFeeStore{schedule: []domain.PlatformFees{
		{Venue: domain.VenuePolymarket, TakerFee: 0.02},
		{Venue: domain.VenueKalshi, TakerFee: 0.02},
	}}
	provider := fees.NewProvider(feeStore, logger)
	return NewEngine(EngineConfig{StaleTimeout: 10 * time.Minute}, EngineDeps{
		Thresholds:  arb.DefaultThresholds(),
		SpikeConfig: volume.DefaultSpikeConfig(),
		Fees:        provider,
		Tracker:     track.New(store, logger),
		Store:       store,
		Volumes:     volumes,
		Bus:         bus,
		Logger:      logger,
	})
}

func underroundSnapshot(marketID string) domain.PriceSnapshot {
	// 0.47 + 0.47 = 0.94: 6% gross, 4% fees at 2x taker, 2% net, executable
	// at min(1500, 2000) deployable.
	return domain.PriceSnapshot{
		MarketID:   marketID,
		Venue:      domain.VenuePolymarket,
		Title:      "Team A wins",
		YesBid:     0.47,
		NoBid:      0.47,
		YesBidSize: 1500,
		NoBidSize:  2000,
		ObservedAt: time.Now().UTC(),
	}
}

func TestRunSweep_DetectsAndTracks(t *testing.T) {
	store := newFakeOppStore()
	e := newTestEngine(t, store, nil, nil)

	in := SweepInput{
		Snapshots: []domain.PriceSnapshot{
			underroundSnapshot("mkt-1"),
			{MarketID: "mkt-2", Venue: domain.VenuePolymarket, YesBid: 0.50, NoBid: 0.50, ObservedAt: time.Now().UTC()},
		},
		Events: []domain.EventGroup{{
			GroupID: "grp-1",
			Name:    "Party to win state",
			Venue:   domain.VenuePolymarket,
			Outcomes: []domain.OutcomeQuote{
				{MarketID: "o1", YesAsk: 0.30, AskSize: 1200},
				{MarketID: "o2", YesAsk: 0.30, AskSize: 1100},
				{MarketID: "o3", YesAsk: 0.30, AskSize: 1400},
			},
		}},
	}

	res, err := e.RunSweep(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Detected, "underround on mkt-1 plus the event group; mkt-2 is fairly priced")
	assert.Equal(t, 2, res.Tracked)
	assert.Zero(t, res.Failed)
	assert.Equal(t, 2, store.openCount())
}

func TestRunSweep_RepeatSweepExtendsRows(t *testing.T) {
	store := newFakeOppStore()
	e := newTestEngine(t, store, nil, nil)
	ctx := context.Background()
	in := SweepInput{Snapshots: []domain.PriceSnapshot{underroundSnapshot("mkt-1")}}

	_, err := e.RunSweep(ctx, in)
	require.NoError(t, err)
	_, err = e.RunSweep(ctx, in)
	require.NoError(t, err)

	require.Equal(t, 1, store.openCount(), "re-detection must extend, not duplicate")
	for _, r := range store.rows {
		assert.Equal(t, 2, r.SnapshotCount)
	}
}

func TestRunSweep_TrackFailureDoesNotAbort(t *testing.T) {
	store := newFakeOppStore()
	store.insertErr = context.DeadlineExceeded
	e := newTestEngine(t, store, nil, nil)

	res, err := e.RunSweep(context.Background(), SweepInput{
		Snapshots: []domain.PriceSnapshot{underroundSnapshot("mkt-1")},
	})
	require.NoError(t, err, "a persistence failure is counted, not fatal")
	assert.Equal(t, 1, res.Detected)
	assert.Zero(t, res.Tracked)
	assert.Equal(t, 1, res.Failed)
}

func TestRunSweep_EmitsDetectionEvents(t *testing.T) {
	store := newFakeOppStore()
	bus := newMemBus()
	e := newTestEngine(t, store, nil, bus)

	_, err := e.RunSweep(context.Background(), SweepInput{
		Snapshots: []domain.PriceSnapshot{underroundSnapshot("mkt-1")},
	})
	require.NoError(t, err)

	require.Len(t, bus.streams[arbEventStream], 1)
	var evt map[string]any
	require.NoError(t, json.Unmarshal(bus.streams[arbEventStream][0], &evt))
	assert.Equal(t, "arb_detected", evt["event"])
	assert.Equal(t, "underround", evt["type"])
	assert.Equal(t, "mkt-1", evt["identity"])
}

func TestRunSweep_VolumeSpikeCounted(t *testing.T) {
	store := newFakeOppStore()
	volumes := newFakeVolumeStore()
	e := newTestEngine(t, store, volumes, nil)

	// Three quiet baseline hours already on record.
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, volumes.Record(context.Background(), domain.VolumeBucket{
			MarketID:    "mkt-2",
			BucketStart: base.Add(time.Duration(i) * time.Hour),
			VolumeUSD:   1000,
		}))
	}

	snap := domain.PriceSnapshot{
		MarketID:   "mkt-2",
		Venue:      domain.VenueKalshi,
		YesBid:     0.50,
		NoBid:      0.49, // no arb, just volume
		Volume24h:  5000,
		ObservedAt: base.Add(3 * time.Hour),
	}
	res, err := e.RunSweep(context.Background(), SweepInput{Snapshots: []domain.PriceSnapshot{snap}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Spikes)
	assert.Zero(t, res.Detected)
}

func TestRun_SweepsBusBatches(t *testing.T) {
	store := newFakeOppStore()
	bus := newMemBus()
	e := newTestEngine(t, store, nil, bus)

	batch, err := json.Marshal(SweepInput{Snapshots: []domain.PriceSnapshot{underroundSnapshot("mkt-1")}})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	require.NoError(t, bus.Publish(ctx, "sync_batches", batch))
	require.NoError(t, bus.Publish(ctx, "sync_batches", []byte("not json")))

	assert.Eventually(t, func() bool {
		return store.openCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}
