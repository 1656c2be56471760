// Package domain defines the shared types, errors, and persistence
// interfaces for the synthetic arbitrage service.
package domain

import "time"

// Odds holds an American-odds quote for the two sides of a market.
type Odds struct {
	Home float64 `json:"home"`
	Away float64 `json:"away"`
}

// MarketTick is a single live observation from an odds feed. Ticks are
// ephemeral: they are consumed by the detector and never retained.
type MarketTick struct {
	GameID    string    `json:"game_id"`
	Timestamp time.Time `json:"timestamp"`
	Exchange  string    `json:"exchange"`
	Market    string    `json:"market"`
	Sport     string    `json:"sport"`
	Odds      Odds      `json:"odds"`
}

// Sport rotation-number ranges. Rotation numbers are an external bookmaker
// convention; the feed uses them to classify a market when the sport field
// is absent from the wire payload.
const (
	RotationNFLMin = 101
	RotationNFLMax = 500
	RotationNBAMin = 501
	RotationNBAMax = 900
	RotationMLBMin = 901
	RotationMLBMax = 1300
)

// SportFromRotation maps a rotation number to a sport identifier, or ""
// when the number falls outside every known range.
func SportFromRotation(rotation int) string {
	switch {
	case rotation >= RotationNFLMin && rotation <= RotationNFLMax:
		return "nfl"
	case rotation >= RotationNBAMin && rotation <= RotationNBAMax:
		return "nba"
	case rotation >= RotationMLBMin && rotation <= RotationMLBMax:
		return "mlb"
	default:
		return ""
	}
}
