package stats

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/syntharb/internal/domain"
)

// series generates n values from a simple deterministic walk around base.
func series(n int, base float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = base + math.Sin(float64(i)*0.37)*2 + float64(i%7)*0.25
	}
	return out
}

func TestCalculateHedgeRatioPerfectCorrelation(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	primary := series(100, -5.5)
	k := 2.0
	hedge := make([]float64, len(primary))
	for i, v := range primary {
		hedge[i] = k * v
	}

	params, err := eng.CalculateHedgeRatio(primary, hedge)
	require.NoError(t, err)

	assert.Greater(t, math.Abs(params.Correlation), 0.99)
	assert.InDelta(t, 1/k, params.Ratio, 0.01)
	assert.InDelta(t, 0, params.ResidualStdDev, 1e-9)
	assert.GreaterOrEqual(t, params.Confidence, 0.8)
}

func TestCalculateHedgeRatioNegativeMultiple(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	primary := series(80, 3)
	hedge := make([]float64, len(primary))
	for i, v := range primary {
		hedge[i] = -0.5 * v
	}

	params, err := eng.CalculateHedgeRatio(primary, hedge)
	require.NoError(t, err)

	assert.Less(t, params.Correlation, -0.99)
	assert.InDelta(t, -2.0, params.Ratio, 0.01)
}

func TestCalculateHedgeRatioSymmetry(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	a := series(90, 10)
	b := make([]float64, len(a))
	for i, v := range a {
		// Correlated but noisy.
		b[i] = 1.5*v + math.Cos(float64(i)*0.9)*3
	}

	ab, err := eng.CalculateHedgeRatio(a, b)
	require.NoError(t, err)
	ba, err := eng.CalculateHedgeRatio(b, a)
	require.NoError(t, err)

	assert.InDelta(t, ab.Correlation, ba.Correlation, 1e-12)
}

func TestCalculateHedgeRatioBoundedness(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	a := series(200, 0)
	b := make([]float64, len(a))
	for i, v := range a {
		b[i] = 0.3*v + math.Sin(float64(i)*1.7)*5
	}

	params, err := eng.CalculateHedgeRatio(a, b)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, params.Correlation, -1.0)
	assert.LessOrEqual(t, params.Correlation, 1.0)
	assert.GreaterOrEqual(t, params.Confidence, 0.0)
	assert.LessOrEqual(t, params.Confidence, 1.0)
	assert.GreaterOrEqual(t, params.ResidualStdDev, 0.0)
	assert.False(t, math.IsNaN(params.Ratio) || math.IsInf(params.Ratio, 0))
	assert.False(t, math.IsNaN(params.Variance) || math.IsInf(params.Variance, 0))
}

func TestCalculateHedgeRatioConfidenceGrowsWithSampleSize(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	mk := func(n int) (p, h []float64) {
		p = series(n, 1)
		h = make([]float64, n)
		for i, v := range p {
			h[i] = 2*v + math.Sin(float64(i))*0.4
		}
		return p, h
	}

	p60, h60 := mk(60)
	p600, h600 := mk(600)

	small, err := eng.CalculateHedgeRatio(p60, h60)
	require.NoError(t, err)
	large, err := eng.CalculateHedgeRatio(p600, h600)
	require.NoError(t, err)

	assert.Greater(t, large.Confidence, small.Confidence)
}

func TestCalculateHedgeRatioInsufficientData(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	short := series(30, 0)
	_, err := eng.CalculateHedgeRatio(short, short)
	require.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestCalculateHedgeRatioLengthMismatch(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	_, err := eng.CalculateHedgeRatio(series(60, 0), series(50, 0))
	require.ErrorIs(t, err, domain.ErrLengthMismatch)
}

func TestCalculateHedgeRatioZeroVariance(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{})

	flat := make([]float64, 60)
	for i := range flat {
		flat[i] = 7.5
	}
	_, err := eng.CalculateHedgeRatio(flat, series(60, 0))
	require.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestUpdatePriceAndAlignedHistories(t *testing.T) {
	eng := NewCovarianceEngine(EngineConfig{Capacity: 5})

	now := time.Now()
	for i := 0; i < 8; i++ {
		eng.UpdatePrice("g1:q1_spread", float64(i), now)
	}
	for i := 0; i < 3; i++ {
		eng.UpdatePrice("g1:full_spread", float64(i)*10, now)
	}

	p, h := eng.AlignedHistories("g1:q1_spread", "g1:full_spread")
	require.Len(t, p, 3)
	require.Len(t, h, 3)
	// Eviction keeps the newest tail of the longer ring.
	assert.Equal(t, []float64{5, 6, 7}, p)
	assert.Equal(t, []float64{0, 10, 20}, h)

	st := eng.GetStatistics()
	assert.Equal(t, 2, st.TrackedMarkets)
	assert.Equal(t, 8, st.TotalSamples)
	assert.Equal(t, 5, st.Capacity)
}

func BenchmarkCalculateHedgeRatio1000(b *testing.B) {
	eng := NewCovarianceEngine(EngineConfig{})
	p := series(1000, 0)
	h := make([]float64, len(p))
	for i, v := range p {
		h[i] = 1.8*v + math.Sin(float64(i)*0.11)
	}

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := eng.CalculateHedgeRatio(p, h); err != nil {
			b.Fatal(err)
		}
	}
}
