package service

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/syntharb/internal/arbitrage"
	"github.com/oddslab/syntharb/internal/config"
	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/stats"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memBus is an in-memory SignalBus capturing everything published.
type memBus struct {
	mu        sync.Mutex
	published map[string][][]byte
	streams   map[string][][]byte
}

func newMemBus() *memBus {
	return &memBus{
		published: make(map[string][][]byte),
		streams:   make(map[string][][]byte),
	}
}

func (b *memBus) Publish(_ context.Context, channel string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published[channel] = append(b.published[channel], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (b *memBus) StreamAppend(_ context.Context, stream string, payload []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.streams[stream] = append(b.streams[stream], payload)
	return nil
}

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func (b *memBus) messages(channel string) [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.published[channel]
}

func (b *memBus) streamLen(stream string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.streams[stream])
}

// memRelStore is an in-memory RelationshipStore.
type memRelStore struct {
	mu   sync.Mutex
	rels map[domain.RelationshipKey]domain.MarketRelationship
}

func newMemRelStore() *memRelStore {
	return &memRelStore{rels: make(map[domain.RelationshipKey]domain.MarketRelationship)}
}

func (s *memRelStore) Upsert(_ context.Context, rel domain.MarketRelationship) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rels[rel.Key()] = rel
	return nil
}

func (s *memRelStore) Get(_ context.Context, key domain.RelationshipKey) (domain.MarketRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.rels[key]
	if !ok {
		return domain.MarketRelationship{}, domain.ErrNotFound
	}
	return rel, nil
}

func (s *memRelStore) ListByGame(_ context.Context, gameID string) ([]domain.MarketRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketRelationship
	for _, rel := range s.rels {
		if rel.GameID == gameID {
			out = append(out, rel)
		}
	}
	return out, nil
}

func (s *memRelStore) List(context.Context) ([]domain.MarketRelationship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.MarketRelationship
	for _, rel := range s.rels {
		out = append(out, rel)
	}
	return out, nil
}

func (s *memRelStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rels)
}

// memOppStore is an in-memory OpportunityStore.
type memOppStore struct {
	mu   sync.Mutex
	opps []domain.Opportunity
}

func (s *memOppStore) Insert(_ context.Context, opp domain.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.opps {
		if existing.ID == opp.ID {
			return nil
		}
	}
	s.opps = append(s.opps, opp)
	return nil
}

func (s *memOppStore) ListRecent(_ context.Context, limit int) ([]domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Opportunity, len(s.opps))
	copy(out, s.opps)
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (s *memOppStore) ListBefore(_ context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.Opportunity
	for _, opp := range s.opps {
		if opp.DetectedAt.Before(cutoff) {
			out = append(out, opp)
		}
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *memOppStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []domain.Opportunity
	var deleted int64
	for _, opp := range s.opps {
		if opp.DetectedAt.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, opp)
	}
	s.opps = kept
	return deleted, nil
}

// memOddsCache is an in-memory OddsCache.
type memOddsCache struct {
	mu   sync.Mutex
	odds map[string]domain.Odds
}

func newMemOddsCache() *memOddsCache {
	return &memOddsCache{odds: make(map[string]domain.Odds)}
}

func (c *memOddsCache) SetOdds(_ context.Context, gameID, market string, odds domain.Odds, _ time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.odds[gameID+"|"+market] = odds
	return nil
}

func (c *memOddsCache) GetOdds(_ context.Context, gameID, market string) (domain.Odds, time.Time, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	odds, ok := c.odds[gameID+"|"+market]
	if !ok {
		return domain.Odds{}, time.Time{}, domain.ErrNotFound
	}
	return odds, time.Time{}, nil
}

// oddsForProb inverts the American-odds implied probability for the home
// side, so tests can drive the engine to an exact leg value.
func oddsForProb(q float64) domain.Odds {
	var home float64
	if q >= 0.5 {
		home = -100 * q / (1 - q)
	} else {
		home = 100 * (1 - q) / q
	}
	return domain.Odds{Home: home, Away: -home}
}

func tickAt(gameID, market string, prob float64, ts time.Time) domain.MarketTick {
	return domain.MarketTick{
		GameID:    gameID,
		Timestamp: ts,
		Exchange:  "bookmaker_a",
		Market:    market,
		Sport:     "nba",
		Odds:      oddsForProb(prob),
	}
}

func TestTickServiceUpdatesEngineAndPublishes(t *testing.T) {
	engine := stats.NewCovarianceEngine(stats.EngineConfig{MinSamples: 5, Capacity: 100})
	bus := newMemBus()
	cache := newMemOddsCache()
	svc := NewTickService(engine, cache, bus, testLogger())

	ts := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	tick := tickAt("nba-lal-bos", "q1_spread", 0.55, ts)
	require.NoError(t, svc.HandleTick(context.Background(), tick))

	hist := engine.History(historyKey("nba", "nba-lal-bos", "q1_spread"))
	require.Len(t, hist, 1)
	assert.InDelta(t, 0.55, hist[0], 1e-9)

	odds, _, err := cache.GetOdds(context.Background(), "nba-lal-bos", "q1_spread")
	require.NoError(t, err)
	assert.InDelta(t, tick.Odds.Home, odds.Home, 1e-9)

	msgs := bus.messages("ticks")
	require.Len(t, msgs, 1)
	var published domain.MarketTick
	require.NoError(t, json.Unmarshal(msgs[0], &published))
	assert.Equal(t, tick.GameID, published.GameID)
	assert.Equal(t, tick.Market, published.Market)

	assert.Equal(t, 1, bus.streamLen(tickStream))
}

func TestTickServiceRejectsIncompleteTick(t *testing.T) {
	engine := stats.NewCovarianceEngine(stats.EngineConfig{})
	bus := newMemBus()
	svc := NewTickService(engine, nil, bus, testLogger())

	err := svc.HandleTick(context.Background(), domain.MarketTick{Market: "q1_spread"})
	require.Error(t, err)
	assert.Empty(t, bus.messages("ticks"))
}

// feedPair pushes n correlated tick pairs through the tick service. The
// hedge leg tracks 0.8*primary plus a small deterministic wobble, so the
// fitted ratio lands near 1/0.8.
func feedPair(t *testing.T, svc *TickService, gameID string, n int) {
	t.Helper()
	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		ts := base.Add(time.Duration(i) * time.Second)
		p := 0.45 + 0.08*math.Sin(float64(i)/9)
		h := 0.8*p + 0.06 + 0.002*math.Sin(float64(i)*7.3)
		require.NoError(t, svc.HandleTick(context.Background(), tickAt(gameID, "q1_spread", p, ts)))
		require.NoError(t, svc.HandleTick(context.Background(), tickAt(gameID, "full_spread", h, ts)))
	}
}

func TestRefitOnceFitsAndInstalls(t *testing.T) {
	engine := stats.NewCovarianceEngine(stats.EngineConfig{MinSamples: 50, Capacity: 1000})
	bus := newMemBus()
	tickSvc := NewTickService(engine, nil, bus, testLogger())
	feedPair(t, tickSvc, "nba-lal-bos", 120)

	detector := arbitrage.NewSyntheticDetector(arbitrage.DetectorConfig{}, testLogger())
	store := newMemRelStore()
	pairs := []config.MarketPair{{Primary: "q1_spread", Hedge: "full_spread"}}
	refit := NewRefitService(engine, detector, store, bus, nil, pairs,
		time.Minute, 2*time.Hour, testLogger())

	now := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	n, err := refit.RefitOnce(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, detector.RelationshipCount())
	assert.Equal(t, 1, store.count())

	rel, err := store.Get(context.Background(), domain.RelationshipKey{
		GameID:        "nba-lal-bos",
		PrimaryMarket: "q1_spread",
		HedgeMarket:   "full_spread",
	})
	require.NoError(t, err)
	assert.Equal(t, "nba", rel.Sport)
	assert.Greater(t, rel.Correlation, 0.9)
	assert.InDelta(t, 1/0.8, rel.HedgeRatio, 0.1)
	assert.Equal(t, rel.HedgeRatio, rel.Beta)
	assert.Equal(t, 2*time.Hour, rel.HalfLife)
	assert.Equal(t, now, rel.LastUpdated)
	assert.Greater(t, rel.Confidence, 0.7)

	require.Len(t, bus.messages("relationships"), 1)
}

func TestRefitOnceSkipsThinHistories(t *testing.T) {
	engine := stats.NewCovarianceEngine(stats.EngineConfig{MinSamples: 50, Capacity: 1000})
	bus := newMemBus()
	tickSvc := NewTickService(engine, nil, bus, testLogger())
	feedPair(t, tickSvc, "nba-lal-bos", 10)

	detector := arbitrage.NewSyntheticDetector(arbitrage.DetectorConfig{}, testLogger())
	store := newMemRelStore()
	pairs := []config.MarketPair{{Primary: "q1_spread", Hedge: "full_spread"}}
	refit := NewRefitService(engine, detector, store, bus, nil, pairs,
		time.Minute, 2*time.Hour, testLogger())

	n, err := refit.RefitOnce(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, detector.RelationshipCount())
	assert.Zero(t, store.count())
}

func TestOpportunityServiceRecord(t *testing.T) {
	store := &memOppStore{}
	bus := newMemBus()
	svc := NewOpportunityService(store, bus, nil, testLogger())

	opp := domain.Opportunity{
		ID:            "syn-nba-lal-bos-q1_spread-full_spread-1",
		GameID:        "nba-lal-bos",
		Sport:         "nba",
		PrimaryMarket: "q1_spread",
		HedgeMarket:   "full_spread",
		Mispricing:    3.2,
		ExpectedValue: 0.04,
		Correlation:   0.9,
		DetectedAt:    time.Date(2026, 3, 14, 19, 30, 0, 0, time.UTC),
	}
	require.NoError(t, svc.Record(context.Background(), opp, 12_000))

	listed, err := svc.ListRecent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, opp.ID, listed[0].ID)

	msgs := bus.messages("opportunities")
	require.Len(t, msgs, 1)
	var event map[string]any
	require.NoError(t, json.Unmarshal(msgs[0], &event))
	assert.InDelta(t, 12_000, event["position_size"].(float64), 1e-9)

	assert.Equal(t, 1, bus.streamLen(opportunityStream))
}
