package domain

import "time"

// HedgeParameters is the output of a regression fit between two aligned
// price series.
//
// The direction convention: HedgeRatio is cov(primary,hedge)/var(hedge),
// i.e. units of the primary leg per unit of the hedge leg. For a hedge
// series generated as hedge = k*primary the ratio converges to 1/k.
type HedgeParameters struct {
	Ratio          float64 `json:"ratio"`
	Correlation    float64 `json:"correlation"`
	Confidence     float64 `json:"confidence"`
	Variance       float64 `json:"variance"`
	ResidualStdDev float64 `json:"residual_std_dev"`
	SampleSize     int     `json:"sample_size"`
}

// RelationshipKey identifies a fitted relationship between two markets of
// one game. It is the composite lookup key for the detector's table.
type RelationshipKey struct {
	GameID        string
	PrimaryMarket string
	HedgeMarket   string
}

// MarketRelationship is a persisted fitted relationship between two named
// markets. It is overwritten wholesale on each refit; there is no partial
// update.
type MarketRelationship struct {
	GameID         string        `json:"game_id"`
	Sport          string        `json:"sport"`
	PrimaryMarket  string        `json:"primary_market"`
	HedgeMarket    string        `json:"hedge_market"`
	Covariance     float64       `json:"covariance"`
	Correlation    float64       `json:"correlation"`
	HedgeRatio     float64       `json:"hedge_ratio"`
	Beta           float64       `json:"beta"`
	HalfLife       time.Duration `json:"half_life"`
	ResidualStdDev float64       `json:"residual_std_dev"`
	Confidence     float64       `json:"confidence"`
	LastUpdated    time.Time     `json:"last_updated"`
}

// Key returns the detector lookup key for this relationship.
func (r MarketRelationship) Key() RelationshipKey {
	return RelationshipKey{
		GameID:        r.GameID,
		PrimaryMarket: r.PrimaryMarket,
		HedgeMarket:   r.HedgeMarket,
	}
}

// Stale reports whether the relationship is older than its half-life at the
// given reference time. Staleness is advisory; the detector does not enforce
// it, callers (refit scheduler, API) do.
func (r MarketRelationship) Stale(now time.Time) bool {
	if r.HalfLife <= 0 {
		return false
	}
	return now.Sub(r.LastUpdated) > r.HalfLife
}
