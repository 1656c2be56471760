package feed

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/oddslab/syntharb/internal/arbitrage"
	"github.com/oddslab/syntharb/internal/config"
	"github.com/oddslab/syntharb/internal/domain"
	"github.com/oddslab/syntharb/internal/risk"
)

// OpportunitySink receives validated opportunities with their sized stake.
type OpportunitySink interface {
	Record(ctx context.Context, opp domain.Opportunity, size float64) error
}

type tickKey struct {
	GameID string
	Market string
}

// DetectorFeeder subscribes to the "ticks" channel, keeps the latest tick
// per (game, market), and runs the detection pipeline whenever both legs of
// a configured pair are fresh.
type DetectorFeeder struct {
	bus        domain.SignalBus
	detector   *arbitrage.SyntheticDetector
	riskMgr    *risk.Manager
	sink       OpportunitySink
	pairs      []config.MarketPair
	staleAfter time.Duration
	logger     *slog.Logger

	lastTick map[tickKey]domain.MarketTick
}

// NewDetectorFeeder creates a DetectorFeeder for the configured market pairs.
func NewDetectorFeeder(
	bus domain.SignalBus,
	detector *arbitrage.SyntheticDetector,
	riskMgr *risk.Manager,
	sink OpportunitySink,
	pairs []config.MarketPair,
	staleAfter time.Duration,
	logger *slog.Logger,
) *DetectorFeeder {
	return &DetectorFeeder{
		bus:        bus,
		detector:   detector,
		riskMgr:    riskMgr,
		sink:       sink,
		pairs:      pairs,
		staleAfter: staleAfter,
		logger:     logger.With(slog.String("component", "detector_feeder")),
		lastTick:   make(map[tickKey]domain.MarketTick),
	}
}

// Run consumes ticks until ctx is cancelled. The tick map is only touched
// from this goroutine, so no locking is needed.
func (f *DetectorFeeder) Run(ctx context.Context) error {
	ch, err := f.bus.Subscribe(ctx, "ticks")
	if err != nil {
		return err
	}
	f.logger.Info("detector feeder started", slog.Int("pairs", len(f.pairs)))
	defer f.logger.Info("detector feeder stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-ch:
			if !ok {
				return nil
			}
			var tick domain.MarketTick
			if err := json.Unmarshal(data, &tick); err != nil {
				f.logger.Debug("dropping malformed tick",
					slog.String("error", err.Error()),
					slog.Int("payload_len", len(data)),
				)
				continue
			}
			f.HandleTick(ctx, tick)
		}
	}
}

// HandleTick records the tick and evaluates every configured pair the
// tick's market participates in.
func (f *DetectorFeeder) HandleTick(ctx context.Context, tick domain.MarketTick) {
	if tick.GameID == "" || tick.Market == "" {
		return
	}
	f.lastTick[tickKey{GameID: tick.GameID, Market: tick.Market}] = tick

	for _, pair := range f.pairs {
		if tick.Market != pair.Primary && tick.Market != pair.Hedge {
			continue
		}
		primary, okP := f.lastTick[tickKey{GameID: tick.GameID, Market: pair.Primary}]
		hedge, okH := f.lastTick[tickKey{GameID: tick.GameID, Market: pair.Hedge}]
		if !okP || !okH {
			continue
		}
		if !f.fresh(primary, hedge) {
			continue
		}
		f.evaluate(ctx, &primary, &hedge)
	}
}

// fresh reports whether the two legs were observed close enough together to
// be compared.
func (f *DetectorFeeder) fresh(primary, hedge domain.MarketTick) bool {
	gap := primary.Timestamp.Sub(hedge.Timestamp)
	if gap < 0 {
		gap = -gap
	}
	return gap <= f.staleAfter
}

// evaluate runs detect, validation, and sizing for one pair observation.
func (f *DetectorFeeder) evaluate(ctx context.Context, primary, hedge *domain.MarketTick) {
	opp := f.detector.Detect(primary, hedge)
	if opp == nil {
		return
	}
	if !f.detector.ValidateOpportunity(opp) {
		return
	}
	if !f.riskMgr.Validate(opp) {
		return
	}
	size := f.riskMgr.CalculatePositionSize(opp)
	if size <= 0 {
		return
	}

	if err := f.sink.Record(ctx, *opp, size); err != nil {
		f.logger.Error("record opportunity failed",
			slog.String("opportunity_id", opp.ID),
			slog.String("error", err.Error()),
		)
	}
}
