package model

import "time"

// ContextSnapshot is the ambient state recorded for a single capture.
// Rows are append-only.
type ContextSnapshot struct {
	ID uint `gorm:"primaryKey" json:"id"`

	ErrorSignature string `gorm:"size:64;index;not null" json:"error_signature"`
	CaptureID      string `gorm:"size:36" json:"capture_id"`

	// JSON encoded key/value mapping
	Payload string `gorm:"type:text" json:"payload"`

	CapturedAt time.Time `gorm:"not null;index" json:"captured_at"`
}
