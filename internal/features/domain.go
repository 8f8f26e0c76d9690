// Package features implements named feature toggles with a fail-closed
// gate: a toggle that is missing, disabled, or unreadable denies access.
package features

import "time"

// Toggle is a named on/off switch stored in feature_toggles.
type Toggle struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Well-known toggle names referenced by route wiring.
const (
	FeaturePayments = "payments"
)
