package domain

import "errors"

// Sentinel errors for the pricing paths. Handlers translate these into
// structured API responses; everything else is an internal error.
var (
	// ErrNotFound indicates a service, area, or customer does not exist.
	ErrNotFound = errors.New("record not found")

	// ErrNoBasePricing indicates the catalog has no base price for a
	// (service, area) pair. Terminal for that request.
	ErrNoBasePricing = errors.New("no base pricing for service and area")

	// ErrNoModel indicates no trained model artifact is available or
	// loadable. Recoverable: callers fall back to rule-based pricing.
	ErrNoModel = errors.New("no trained model available")

	// ErrInsufficientData aborts a training run without touching the
	// previous artifact.
	ErrInsufficientData = errors.New("insufficient historical data for training")

	// ErrInvalidInput indicates a malformed request payload.
	ErrInvalidInput = errors.New("invalid input")
)
