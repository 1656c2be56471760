package stats

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/oddslab/syntharb/internal/domain"
)

const (
	// DefaultMinSamples is the smallest series length accepted by
	// CalculateHedgeRatio. Below ~50 observations the regression is too
	// noisy for the detector's z-score to mean anything.
	DefaultMinSamples = 50
	// DefaultCapacity is the per-market ring buffer size.
	DefaultCapacity = 1000
)

// EngineConfig holds the tunable parameters of the covariance engine.
type EngineConfig struct {
	MinSamples int
	Capacity   int
}

// EngineStatistics is an observability snapshot of the engine state.
type EngineStatistics struct {
	TrackedMarkets int `json:"tracked_markets"`
	TotalSamples   int `json:"total_samples"`
	Capacity       int `json:"capacity"`
}

// marketHistory pairs a price ring with a parallel timestamp ring.
type marketHistory struct {
	prices *RingBuffer[float64]
	times  *RingBuffer[int64]
}

// CovarianceEngine maintains rolling price histories per market and fits
// linear hedge relationships between aligned price series. UpdatePrice and
// the read paths are safe for concurrent use; CalculateHedgeRatio is
// stateless given its inputs.
type CovarianceEngine struct {
	cfg       EngineConfig
	histories map[string]*marketHistory
	mu        sync.RWMutex
}

// NewCovarianceEngine creates an engine with the given config. Zero fields
// fall back to defaults.
func NewCovarianceEngine(cfg EngineConfig) *CovarianceEngine {
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = DefaultMinSamples
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	return &CovarianceEngine{
		cfg:       cfg,
		histories: make(map[string]*marketHistory),
	}
}

// UpdatePrice appends an observation to the market's rings. It never
// triggers a refit; the refit scheduler reads histories on its own cadence.
func (e *CovarianceEngine) UpdatePrice(marketID string, price float64, ts time.Time) {
	e.mu.Lock()
	defer e.mu.Unlock()

	h, ok := e.histories[marketID]
	if !ok {
		h = &marketHistory{
			prices: NewRingBuffer[float64](e.cfg.Capacity),
			times:  NewRingBuffer[int64](e.cfg.Capacity),
		}
		e.histories[marketID] = h
	}
	h.prices.Push(price)
	h.times.Push(ts.UnixMilli())
}

// History returns a copy of the market's price series, oldest first.
func (e *CovarianceEngine) History(marketID string) []float64 {
	e.mu.RLock()
	defer e.mu.RUnlock()

	h, ok := e.histories[marketID]
	if !ok {
		return nil
	}
	return h.prices.ToSlice()
}

// AlignedHistories returns equal-length tails of two market histories so
// they can be fed to CalculateHedgeRatio. The longer series is truncated
// from the front (oldest observations dropped).
func (e *CovarianceEngine) AlignedHistories(primaryID, hedgeID string) ([]float64, []float64) {
	primary := e.History(primaryID)
	hedge := e.History(hedgeID)
	if len(primary) > len(hedge) {
		primary = primary[len(primary)-len(hedge):]
	} else if len(hedge) > len(primary) {
		hedge = hedge[len(hedge)-len(primary):]
	}
	return primary, hedge
}

// Markets returns the IDs of all tracked markets.
func (e *CovarianceEngine) Markets() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]string, 0, len(e.histories))
	for id := range e.histories {
		out = append(out, id)
	}
	return out
}

// GetStatistics returns summary counts for observability.
func (e *CovarianceEngine) GetStatistics() EngineStatistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := EngineStatistics{
		TrackedMarkets: len(e.histories),
		Capacity:       e.cfg.Capacity,
	}
	for _, h := range e.histories {
		st.TotalSamples += h.prices.Len()
	}
	return st
}

// CalculateHedgeRatio fits the linear hedge relationship between two
// aligned price series.
//
// The slope of the OLS fit of hedge onto primary is cov/var(primary); the
// reported Ratio is cov/var(hedge), i.e. primary units per hedge unit, so
// that a hedge series generated as k*primary yields Ratio -> 1/k.
// Correlation is the Pearson coefficient and is symmetric in its inputs.
// Confidence is r^2 * n/(n+10), clamped to [0,1]: it grows with sample
// size and shrinks with residual dispersion.
//
// Input-contract violations return domain.ErrInsufficientData or
// domain.ErrLengthMismatch; both are hard errors, not "no signal" results.
func (e *CovarianceEngine) CalculateHedgeRatio(primary, hedge []float64) (domain.HedgeParameters, error) {
	var out domain.HedgeParameters

	if len(primary) != len(hedge) {
		return out, fmt.Errorf("covariance: primary has %d samples, hedge has %d: %w",
			len(primary), len(hedge), domain.ErrLengthMismatch)
	}
	n := len(primary)
	if n < e.cfg.MinSamples {
		return out, fmt.Errorf("covariance: %d samples, need %d: %w",
			n, e.cfg.MinSamples, domain.ErrInsufficientData)
	}

	fn := float64(n)
	var sumP, sumH float64
	for i := 0; i < n; i++ {
		sumP += primary[i]
		sumH += hedge[i]
	}
	meanP := sumP / fn
	meanH := sumH / fn

	var cov, varP, varH float64
	for i := 0; i < n; i++ {
		dp := primary[i] - meanP
		dh := hedge[i] - meanH
		cov += dp * dh
		varP += dp * dp
		varH += dh * dh
	}
	cov /= fn
	varP /= fn
	varH /= fn

	if varP == 0 || varH == 0 {
		// Degenerate series: a constant leg carries no hedge information.
		return out, fmt.Errorf("covariance: zero-variance series: %w", domain.ErrInsufficientData)
	}

	corr := cov / math.Sqrt(varP*varH)
	// Clamp floating-point drift so the invariant corr in [-1,1] holds.
	corr = math.Max(-1, math.Min(1, corr))

	// Residuals of the hedge-on-primary OLS fit, in hedge units. These are
	// the sigma the detector divides by when scoring live mispricing.
	slope := cov / varP
	intercept := meanH - slope*meanP
	var ssr float64
	for i := 0; i < n; i++ {
		resid := hedge[i] - (intercept + slope*primary[i])
		ssr += resid * resid
	}
	residStdDev := 0.0
	if n > 2 {
		residStdDev = math.Sqrt(ssr / float64(n-2))
	}

	r2 := corr * corr
	confidence := r2 * fn / (fn + 10)
	confidence = math.Max(0, math.Min(1, confidence))

	out = domain.HedgeParameters{
		Ratio:          cov / varH,
		Correlation:    corr,
		Confidence:     confidence,
		Variance:       varP,
		ResidualStdDev: residStdDev,
		SampleSize:     n,
	}
	return out, nil
}

// Covariance returns cov(primary, hedge) for equal-length series, or 0 for
// mismatched or empty input. Helper for callers that only need the raw
// moment, e.g. the refit scheduler filling MarketRelationship.Covariance.
func Covariance(primary, hedge []float64) float64 {
	n := len(primary)
	if n == 0 || n != len(hedge) {
		return 0
	}
	fn := float64(n)
	var sumP, sumH float64
	for i := 0; i < n; i++ {
		sumP += primary[i]
		sumH += hedge[i]
	}
	meanP := sumP / fn
	meanH := sumH / fn
	var cov float64
	for i := 0; i < n; i++ {
		cov += (primary[i] - meanP) * (hedge[i] - meanH)
	}
	return cov / fn
}
