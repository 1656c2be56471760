package arbitrage

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/oddslab/syntharb/internal/domain"
)

const (
	// DefaultZThreshold is the minimum |mispricing| z-score for an
	// opportunity to be emitted.
	DefaultZThreshold = 2.5
	// DefaultMinCorrelation rejects relationships too loose to trade on,
	// regardless of apparent mispricing.
	DefaultMinCorrelation = 0.75
	// DefaultMinConfidence is the minimum relationship confidence.
	DefaultMinConfidence = 0.7
	// DefaultTailRiskCap bounds the worst-case loss multiple accepted by
	// ValidateOpportunity.
	DefaultTailRiskCap = 6.0
	// DefaultReferenceStake is the notional used to express the hedge leg
	// size implied by the fitted ratio.
	DefaultReferenceStake = 10_000.0

	// minResidualSigma guards the z-score against a degenerate fit. A
	// near-zero residual sigma means the relationship is effectively exact;
	// any live divergence would score as infinite, so we emit nothing.
	minResidualSigma = 1e-9
)

// DetectorConfig holds the detection thresholds.
type DetectorConfig struct {
	ZThreshold     float64
	MinCorrelation float64
	MinConfidence  float64
	TailRiskCap    float64
	ReferenceStake float64
}

// SyntheticDetector holds the fitted relationship table and scores live
// tick pairs against it. Detect is read-only and safe to call from many
// goroutines; UpdateRelationships swaps the whole table under a write lock
// so readers never observe a partial update.
type SyntheticDetector struct {
	cfg    DetectorConfig
	logger *slog.Logger

	mu            sync.RWMutex
	relationships map[domain.RelationshipKey]domain.MarketRelationship
}

// NewSyntheticDetector creates a detector. Zero config fields fall back to
// defaults.
func NewSyntheticDetector(cfg DetectorConfig, logger *slog.Logger) *SyntheticDetector {
	if cfg.ZThreshold <= 0 {
		cfg.ZThreshold = DefaultZThreshold
	}
	if cfg.MinCorrelation <= 0 {
		cfg.MinCorrelation = DefaultMinCorrelation
	}
	if cfg.MinConfidence <= 0 {
		cfg.MinConfidence = DefaultMinConfidence
	}
	if cfg.TailRiskCap <= 0 {
		cfg.TailRiskCap = DefaultTailRiskCap
	}
	if cfg.ReferenceStake <= 0 {
		cfg.ReferenceStake = DefaultReferenceStake
	}
	return &SyntheticDetector{
		cfg:           cfg,
		logger:        logger.With(slog.String("component", "synthetic_detector")),
		relationships: make(map[domain.RelationshipKey]domain.MarketRelationship),
	}
}

// UpdateRelationships replaces the detector's relationship table wholesale.
// The new table is built off-lock and swapped in atomically.
func (d *SyntheticDetector) UpdateRelationships(rels []domain.MarketRelationship) {
	table := make(map[domain.RelationshipKey]domain.MarketRelationship, len(rels))
	for _, r := range rels {
		table[r.Key()] = r
	}

	d.mu.Lock()
	d.relationships = table
	d.mu.Unlock()

	d.logger.Debug("relationship table updated", slog.Int("count", len(rels)))
}

// RelationshipCount returns the number of relationships on file.
func (d *SyntheticDetector) RelationshipCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.relationships)
}

// Relationships returns a copy of the current table.
func (d *SyntheticDetector) Relationships() []domain.MarketRelationship {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.MarketRelationship, 0, len(d.relationships))
	for _, r := range d.relationships {
		out = append(out, r)
	}
	return out
}

// Detect scores a live tick pair against the fitted relationship for the
// pair's (game, primary market, hedge market) key. It returns nil for every
// "no signal" condition: missing or mismatched legs, no relationship on
// file, a relationship below the correlation or confidence minimums, or a
// mispricing below the z threshold. Detect never returns an error; noisy
// upstream identifiers simply fail to match.
//
// Detect is deterministic: identical ticks against an identical table
// produce an identical Opportunity.
func (d *SyntheticDetector) Detect(primary, hedge *domain.MarketTick) *domain.Opportunity {
	if primary == nil || hedge == nil {
		return nil
	}
	if primary.GameID == "" || primary.GameID != hedge.GameID {
		return nil
	}
	if primary.Sport != hedge.Sport {
		return nil
	}

	d.mu.RLock()
	rel, ok := d.relationships[domain.RelationshipKey{
		GameID:        primary.GameID,
		PrimaryMarket: primary.Market,
		HedgeMarket:   hedge.Market,
	}]
	d.mu.RUnlock()
	if !ok {
		return nil
	}

	if math.Abs(rel.Correlation) < d.cfg.MinCorrelation {
		return nil
	}
	if rel.Confidence < d.cfg.MinConfidence {
		return nil
	}
	if rel.HedgeRatio == 0 || rel.ResidualStdDev < minResidualSigma {
		return nil
	}

	primaryVal := LegValue(primary)
	observedHedge := LegValue(hedge)
	if primaryVal <= 0 || observedHedge <= 0 {
		return nil
	}

	// The fitted ratio maps hedge units into primary units, so the
	// model-implied hedge value is the primary value divided by it.
	modelImplied := primaryVal / rel.HedgeRatio
	mispricing := (observedHedge - modelImplied) / rel.ResidualStdDev

	if math.Abs(mispricing) < d.cfg.ZThreshold {
		return nil
	}

	edge := math.Abs(observedHedge - modelImplied)
	opp := &domain.Opportunity{
		ID: fmt.Sprintf("syn-%s-%s-%s-%d",
			primary.GameID, primary.Market, hedge.Market, primary.Timestamp.UnixNano()),
		GameID:            primary.GameID,
		Sport:             primary.Sport,
		PrimaryMarket:     primary.Market,
		HedgeMarket:       hedge.Market,
		PrimaryExchange:   primary.Exchange,
		HedgeExchange:     hedge.Exchange,
		PrimaryValue:      primaryVal,
		HedgeValue:        observedHedge,
		ModelImplied:      modelImplied,
		Mispricing:        mispricing,
		ExpectedValue:     edge,
		TailRisk:          tailRisk(rel.Correlation),
		RequiredHedgeSize: d.cfg.ReferenceStake * math.Abs(rel.HedgeRatio),
		Correlation:       rel.Correlation,
		Confidence:        rel.Confidence,
		DetectedAt:        laterOf(primary.Timestamp, hedge.Timestamp),
	}

	d.logger.Info("opportunity detected",
		slog.String("opp_id", opp.ID),
		slog.Float64("mispricing", opp.Mispricing),
		slog.Float64("correlation", opp.Correlation),
		slog.Float64("expected_value", opp.ExpectedValue),
	)
	return opp
}

// ValidateOpportunity is a pure predicate over an already-detected
// opportunity. Every gate is an independent AND condition.
func (d *SyntheticDetector) ValidateOpportunity(opp *domain.Opportunity) bool {
	if opp == nil {
		return false
	}
	if opp.Confidence < d.cfg.MinConfidence {
		return false
	}
	if math.Abs(opp.Correlation) < d.cfg.MinCorrelation {
		return false
	}
	if math.Abs(opp.Mispricing) < d.cfg.ZThreshold {
		return false
	}
	if opp.TailRisk > d.cfg.TailRiskCap {
		return false
	}
	return true
}

// tailRisk estimates the worst-case loss multiple for a hedged pair as a
// function of how tight the relationship is. Looser correlation means a
// larger unhedged residual leg.
func tailRisk(correlation float64) float64 {
	return 1 + 10*(1-math.Abs(correlation))
}

// laterOf picks the fresher of the two tick timestamps; DetectedAt must be
// derived from inputs so Detect stays clock-independent.
func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
