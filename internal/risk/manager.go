// Package risk gates detected opportunities for execution-worthiness and
// sizes positions conservatively against a reference bankroll.
package risk

import (
	"log/slog"
	"math"

	"github.com/oddslab/syntharb/internal/domain"
)

const (
	// DefaultBankroll is the reference bankroll for sizing.
	DefaultBankroll = 100_000.0
	// DefaultMaxBankrollFraction caps any single position.
	DefaultMaxBankrollFraction = 0.25
	// DefaultMinCorrelation is the execution-side correlation gate. It is
	// deliberately stricter than the detector's.
	DefaultMinCorrelation = 0.8
	// DefaultTailRiskCap bounds the accepted worst-case loss multiple.
	DefaultTailRiskCap = 6.0
	// DefaultHedgeSizeBase anchors the correlation-scaled hedge size cap.
	DefaultHedgeSizeBase = 50_000.0

	// evScale maps the expected-value edge (a probability-scale fraction,
	// typically a few percent) onto the sizing multiplier's [0,1] range.
	evScale = 10.0
)

// ManagerConfig holds the risk thresholds and bankroll parameters.
type ManagerConfig struct {
	Bankroll            float64
	MaxBankrollFraction float64
	MinCorrelation      float64
	TailRiskCap         float64
	HedgeSizeBase       float64
}

// Manager validates opportunities against correlation, size, and tail-risk
// limits, and computes conservative position sizes. All methods are pure
// computations over the opportunity and the fixed config; the manager holds
// no mutable state.
type Manager struct {
	cfg    ManagerConfig
	logger *slog.Logger
}

// NewManager creates a Manager. Zero config fields fall back to defaults.
func NewManager(cfg ManagerConfig, logger *slog.Logger) *Manager {
	if cfg.Bankroll <= 0 {
		cfg.Bankroll = DefaultBankroll
	}
	if cfg.MaxBankrollFraction <= 0 {
		cfg.MaxBankrollFraction = DefaultMaxBankrollFraction
	}
	if cfg.MinCorrelation <= 0 {
		cfg.MinCorrelation = DefaultMinCorrelation
	}
	if cfg.TailRiskCap <= 0 {
		cfg.TailRiskCap = DefaultTailRiskCap
	}
	if cfg.HedgeSizeBase <= 0 {
		cfg.HedgeSizeBase = DefaultHedgeSizeBase
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "risk_manager")),
	}
}

// MaxHedgeSize returns the largest hedge notional permitted at the given
// correlation. The cap grows with the square of correlation: tighter
// relationships earn larger hedges.
func (m *Manager) MaxHedgeSize(correlation float64) float64 {
	c := math.Abs(correlation)
	return m.cfg.HedgeSizeBase * c * c
}

// Validate returns true only when every risk gate passes: correlation at or
// above the minimum, required hedge size within the correlation-scaled cap,
// and tail risk at or below the cap. A nil opportunity never validates.
func (m *Manager) Validate(opp *domain.Opportunity) bool {
	if opp == nil {
		return false
	}
	if math.Abs(opp.Correlation) < m.cfg.MinCorrelation {
		m.logger.Debug("rejected: correlation below minimum",
			slog.String("opp_id", opp.ID),
			slog.Float64("correlation", opp.Correlation),
			slog.Float64("min", m.cfg.MinCorrelation),
		)
		return false
	}
	if maxHedge := m.MaxHedgeSize(opp.Correlation); opp.RequiredHedgeSize > maxHedge {
		m.logger.Debug("rejected: hedge size exceeds correlation-scaled cap",
			slog.String("opp_id", opp.ID),
			slog.Float64("required", opp.RequiredHedgeSize),
			slog.Float64("max", maxHedge),
		)
		return false
	}
	if opp.TailRisk > m.cfg.TailRiskCap {
		m.logger.Debug("rejected: tail risk above cap",
			slog.String("opp_id", opp.ID),
			slog.Float64("tail_risk", opp.TailRisk),
			slog.Float64("cap", m.cfg.TailRiskCap),
		)
		return false
	}
	return true
}

// CalculatePositionSize returns a conservative position notional in
// (0, bankroll*maxFraction]. Size scales with expected value and the square
// of correlation, and inversely with tail risk. A nil opportunity or one
// with no edge sizes to zero.
func (m *Manager) CalculatePositionSize(opp *domain.Opportunity) float64 {
	if opp == nil || opp.ExpectedValue <= 0 {
		return 0
	}

	limit := m.cfg.Bankroll * m.cfg.MaxBankrollFraction
	c := math.Abs(opp.Correlation)
	evFactor := math.Min(1, opp.ExpectedValue*evScale)
	tail := math.Max(1, opp.TailRisk)

	size := limit * evFactor * c * c / tail
	if size > limit {
		size = limit
	}
	return size
}
