package domain

import "errors"

var (
	// ErrInsufficientData is returned by the covariance engine when a price
	// series has fewer samples than the configured minimum for a stable fit.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrLengthMismatch is returned when two price series that must be
	// aligned in time have different lengths.
	ErrLengthMismatch = errors.New("series length mismatch")

	// ErrNotFound is returned by stores and caches for missing keys.
	ErrNotFound = errors.New("not found")
	// ErrWSDisconnect marks a feed connection that closed underneath us.
	ErrWSDisconnect = errors.New("websocket disconnected")
)
