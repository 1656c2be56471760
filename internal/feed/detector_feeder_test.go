package feed

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/syntharb/internal/arbitrage"
	"github.com/oddslab/syntharb/internal/config"
	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/risk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordedOpp struct {
	opp  domain.Opportunity
	size float64
}

type memSink struct {
	mu       sync.Mutex
	recorded []recordedOpp
}

func (s *memSink) Record(_ context.Context, opp domain.Opportunity, size float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorded = append(s.recorded, recordedOpp{opp: opp, size: size})
	return nil
}

func (s *memSink) all() []recordedOpp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recorded
}

// oddsForProb inverts the home-side implied probability back to American
// odds so tests can place the hedge leg an exact number of sigmas away.
func oddsForProb(q float64) domain.Odds {
	var home float64
	if q >= 0.5 {
		home = -100 * q / (1 - q)
	} else {
		home = 100 * (1 - q) / q
	}
	return domain.Odds{Home: home, Away: -home}
}

func testRelationship() domain.MarketRelationship {
	return domain.MarketRelationship{
		GameID:         "nba-lal-bos",
		Sport:          "nba",
		PrimaryMarket:  "q1_spread",
		HedgeMarket:    "full_spread",
		Correlation:    0.92,
		HedgeRatio:     0.95,
		Beta:           0.95,
		ResidualStdDev: 0.01,
		Confidence:     0.85,
		LastUpdated:    time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC),
	}
}

func newTestFeeder(sink OpportunitySink, staleAfter time.Duration) (*DetectorFeeder, *arbitrage.SyntheticDetector) {
	detector := arbitrage.NewSyntheticDetector(arbitrage.DetectorConfig{}, testLogger())
	detector.UpdateRelationships([]domain.MarketRelationship{testRelationship()})
	riskMgr := risk.NewManager(risk.ManagerConfig{}, testLogger())
	pairs := []config.MarketPair{{Primary: "q1_spread", Hedge: "full_spread"}}
	feeder := NewDetectorFeeder(nil, detector, riskMgr, sink, pairs, staleAfter, testLogger())
	return feeder, detector
}

// pairTicks builds a primary tick at probability 0.5 and a hedge tick the
// given number of residual sigmas away from the model-implied value.
func pairTicks(rel domain.MarketRelationship, sigmas float64, base time.Time, gap time.Duration) (domain.MarketTick, domain.MarketTick) {
	primaryProb := 0.5
	implied := primaryProb / rel.HedgeRatio
	hedgeProb := implied + sigmas*rel.ResidualStdDev

	primary := domain.MarketTick{
		GameID:    rel.GameID,
		Timestamp: base,
		Exchange:  "bookmaker_a",
		Market:    rel.PrimaryMarket,
		Sport:     rel.Sport,
		Odds:      oddsForProb(primaryProb),
	}
	hedge := domain.MarketTick{
		GameID:    rel.GameID,
		Timestamp: base.Add(gap),
		Exchange:  "bookmaker_b",
		Market:    rel.HedgeMarket,
		Sport:     rel.Sport,
		Odds:      oddsForProb(hedgeProb),
	}
	return primary, hedge
}

func TestFeederRecordsSizedOpportunity(t *testing.T) {
	sink := &memSink{}
	feeder, _ := newTestFeeder(sink, 5*time.Second)

	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	primary, hedge := pairTicks(testRelationship(), 4, base, time.Second)

	feeder.HandleTick(context.Background(), primary)
	require.Empty(t, sink.all(), "one leg alone must not trigger detection")

	feeder.HandleTick(context.Background(), hedge)
	recorded := sink.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, "nba-lal-bos", recorded[0].opp.GameID)
	assert.InDelta(t, 4, recorded[0].opp.Mispricing, 0.05)
	assert.Greater(t, recorded[0].size, 0.0)
	assert.LessOrEqual(t, recorded[0].size, risk.DefaultBankroll*risk.DefaultMaxBankrollFraction)
}

func TestFeederSkipsStalePairs(t *testing.T) {
	sink := &memSink{}
	feeder, _ := newTestFeeder(sink, 5*time.Second)

	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	primary, hedge := pairTicks(testRelationship(), 4, base, time.Minute)

	feeder.HandleTick(context.Background(), primary)
	feeder.HandleTick(context.Background(), hedge)
	assert.Empty(t, sink.all())
}

func TestFeederIgnoresBelowThresholdMoves(t *testing.T) {
	sink := &memSink{}
	feeder, _ := newTestFeeder(sink, 5*time.Second)

	base := time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)
	primary, hedge := pairTicks(testRelationship(), 1, base, time.Second)

	feeder.HandleTick(context.Background(), primary)
	feeder.HandleTick(context.Background(), hedge)
	assert.Empty(t, sink.all())
}

func TestFeederIgnoresUnconfiguredMarkets(t *testing.T) {
	sink := &memSink{}
	feeder, _ := newTestFeeder(sink, 5*time.Second)

	tick := domain.MarketTick{
		GameID:    "nba-lal-bos",
		Timestamp: time.Now(),
		Market:    "moneyline",
		Sport:     "nba",
		Odds:      oddsForProb(0.5),
	}
	feeder.HandleTick(context.Background(), tick)
	assert.Empty(t, sink.all())
}

func TestFeederIgnoresIncompleteTicks(t *testing.T) {
	sink := &memSink{}
	feeder, _ := newTestFeeder(sink, 5*time.Second)

	feeder.HandleTick(context.Background(), domain.MarketTick{Market: "q1_spread"})
	feeder.HandleTick(context.Background(), domain.MarketTick{GameID: "nba-lal-bos"})
	assert.Empty(t, sink.all())
}
