package risk

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oddslab/syntharb/internal/domain"
)

func newTestManager() *Manager {
	return NewManager(ManagerConfig{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func opp(correlation, hedgeSize, tailRisk, ev float64) *domain.Opportunity {
	return &domain.Opportunity{
		ID:                "syn-test",
		Correlation:       correlation,
		RequiredHedgeSize: hedgeSize,
		TailRisk:          tailRisk,
		ExpectedValue:     ev,
		Confidence:        0.85,
		Mispricing:        3.0,
	}
}

func TestValidateCorrelationGate(t *testing.T) {
	m := newTestManager()

	assert.False(t, m.Validate(opp(0.6, 10_000, 2, 0.03)))
	assert.True(t, m.Validate(opp(0.9, 10_000, 2, 0.03)))
	// Magnitude counts: a tight inverse relationship is hedgeable.
	assert.True(t, m.Validate(opp(-0.9, 10_000, 2, 0.03)))
	assert.False(t, m.Validate(nil))
}

func TestValidateHedgeSizeScalesWithCorrelation(t *testing.T) {
	m := newTestManager()

	// At correlation 0.8 the cap is 50_000 * 0.64 = 32_000.
	assert.False(t, m.Validate(opp(0.8, 50_000, 2, 0.03)))
	assert.True(t, m.Validate(opp(0.8, 30_000, 2, 0.03)))

	// Higher correlation permits a larger hedge.
	assert.Greater(t, m.MaxHedgeSize(0.9), m.MaxHedgeSize(0.8))
	assert.True(t, m.Validate(opp(0.9, 40_000, 2, 0.03)))
}

func TestValidateTailRiskCap(t *testing.T) {
	m := newTestManager()

	assert.True(t, m.Validate(opp(0.9, 10_000, 5.5, 0.03)))
	assert.False(t, m.Validate(opp(0.9, 10_000, 8, 0.03)))
}

func TestPositionSizeBounds(t *testing.T) {
	m := newTestManager()

	// 25% of a 100,000 bankroll.
	const maxSize = 25_000.0

	cases := []*domain.Opportunity{
		opp(0.85, 10_000, 1.5, 0.02),
		opp(0.95, 10_000, 1.2, 0.5),
		opp(0.81, 10_000, 5.9, 0.001),
	}
	for _, o := range cases {
		size := m.CalculatePositionSize(o)
		assert.Greater(t, size, 0.0)
		assert.LessOrEqual(t, size, maxSize)
	}

	assert.Zero(t, m.CalculatePositionSize(nil))
	assert.Zero(t, m.CalculatePositionSize(opp(0.9, 10_000, 2, 0)))
}

func TestPositionSizeMonotonicity(t *testing.T) {
	m := newTestManager()

	// More edge, more size.
	assert.Greater(t,
		m.CalculatePositionSize(opp(0.9, 10_000, 2, 0.05)),
		m.CalculatePositionSize(opp(0.9, 10_000, 2, 0.02)),
	)
	// Tighter correlation, more size.
	assert.Greater(t,
		m.CalculatePositionSize(opp(0.95, 10_000, 2, 0.03)),
		m.CalculatePositionSize(opp(0.82, 10_000, 2, 0.03)),
	)
	// More tail risk, less size.
	assert.Less(t,
		m.CalculatePositionSize(opp(0.9, 10_000, 5, 0.03)),
		m.CalculatePositionSize(opp(0.9, 10_000, 2, 0.03)),
	)
}
