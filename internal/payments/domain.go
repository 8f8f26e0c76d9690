// Package payments stores collection QR codes and the transactions paid
// against them. At most one QR code is active at a time.
package payments

import "time"

// QRCode is a rendered payment collection code. Image is the PNG bytes and
// Reference the stable identifier encoded inside it.
type QRCode struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Reference string    `json:"reference"`
	Image     []byte    `json:"image,omitempty"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction records one payment against a QR code. Amount is in the
// currency's minor unit.
type Transaction struct {
	ID        int64     `json:"id"`
	QRCodeID  int64     `json:"qr_code_id"`
	Amount    int64     `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

// Transaction statuses.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)
