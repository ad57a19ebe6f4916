package model

import (
	"encoding/json"
	"time"
)

// ErrorRecord is the aggregated row for one distinct error signature.
// Identifying fields are written once, on the first capture.
type ErrorRecord struct {
	ID uint `gorm:"primaryKey" json:"id"`

	// Dedup key: hex SHA-256 over the identifying fields
	Signature string `gorm:"size:64;uniqueIndex;not null" json:"signature"`

	// Identifying fields
	Code       string `gorm:"size:100" json:"code"`
	Message    string `gorm:"type:text" json:"message"`
	SourceFile string `gorm:"size:512" json:"file"`
	SourceLine int    `json:"line"`
	Kind       string `gorm:"size:255;index" json:"type"`

	// Serialized call frames, never interpreted here
	StackTrace string `gorm:"type:text" json:"-"`

	OccurrenceCount int64     `gorm:"not null;default:1;index" json:"count"`
	FirstSeen       time.Time `gorm:"not null" json:"first_seen"`
	LastSeen        time.Time `gorm:"not null" json:"last_seen"`

	Snapshots []ContextSnapshot `gorm:"foreignKey:ErrorSignature;references:Signature" json:"-"`
}

// ErrorFields carries the data used to create an ErrorRecord on first capture.
type ErrorFields struct {
	Code       string
	Message    string
	SourceFile string
	SourceLine int
	Kind       string
	StackTrace string
}

// ErrorDetail is an ErrorRecord with its decoded trace and the most recent
// context snapshots, oldest first.
type ErrorDetail struct {
	ErrorRecord
	Trace   json.RawMessage   `json:"trace"`
	Context []json.RawMessage `json:"context"`
}
