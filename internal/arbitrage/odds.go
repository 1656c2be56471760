// Package arbitrage implements the synthetic arbitrage detector: it scores
// live tick pairs against fitted market relationships and emits
// opportunities when the mispricing is statistically significant.
package arbitrage

import "github.com/oddslab/syntharb/internal/domain"

// ImpliedProbability converts an American odds quote to an implied win
// probability in (0,1). Returns 0 for a zero quote, which no book posts;
// callers treat 0 as "no value".
func ImpliedProbability(american float64) float64 {
	switch {
	case american < 0:
		return -american / (-american + 100)
	case american > 0:
		return 100 / (american + 100)
	default:
		return 0
	}
}

// LegValue reduces a tick's two-sided quote to the single line value the
// detector models: the home side's implied probability. Both legs of a pair
// use the same convention, so the regression and the live comparison agree.
func LegValue(tick *domain.MarketTick) float64 {
	if tick == nil {
		return 0
	}
	return ImpliedProbability(tick.Odds.Home)
}
