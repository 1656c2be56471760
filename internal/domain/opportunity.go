package domain

import "time"

// Opportunity is the detector's output for a statistically significant
// mispricing between two related markets. Opportunities are immutable:
// they are created by Detect, gated by the risk manager, and discarded by
// the caller. Correlation and Confidence are copied from the matched
// relationship, not recomputed.
type Opportunity struct {
	ID               string    `json:"id"`
	GameID           string    `json:"game_id"`
	Sport            string    `json:"sport"`
	PrimaryMarket    string    `json:"primary_market"`
	HedgeMarket      string    `json:"hedge_market"`
	PrimaryExchange  string    `json:"primary_exchange"`
	HedgeExchange    string    `json:"hedge_exchange"`
	PrimaryValue     float64   `json:"primary_value"`
	HedgeValue       float64   `json:"hedge_value"`
	ModelImplied     float64   `json:"model_implied"`
	Mispricing       float64   `json:"mispricing"`
	ExpectedValue    float64   `json:"expected_value"`
	TailRisk         float64   `json:"tail_risk"`
	RequiredHedgeSize float64  `json:"required_hedge_size"`
	Correlation      float64   `json:"correlation"`
	Confidence       float64   `json:"confidence"`
	DetectedAt       time.Time `json:"detected_at"`
}
