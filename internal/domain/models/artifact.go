package models

import "time"

// ArtifactStatus is the report readiness state shared by the store, the
// worker, and the read path. The same definition is used on both sides of
// every transition so the literal values can never drift apart.
type ArtifactStatus string

const (
	StatusPending  ArtifactStatus = "pending"
	StatusComputed ArtifactStatus = "computed"
	StatusFailed   ArtifactStatus = "failed"
)

// IsValidStatus returns true if s is a known artifact status.
func IsValidStatus(s ArtifactStatus) bool {
	switch s {
	case StatusPending, StatusComputed, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s permits no further transitions.
func (s ArtifactStatus) Terminal() bool {
	return s == StatusComputed || s == StatusFailed
}

// ReportArtifact is one precomputed analysis output. (CanonicalID,
// BusinessDate) is unique; Status moves pending -> computed or
// pending -> failed exactly once.
type ReportArtifact struct {
	CanonicalID  string         `json:"canonical_id"`
	BusinessDate string         `json:"business_date"`
	Status       ArtifactStatus `json:"status"`
	Payload      string         `json:"payload,omitempty"`
	Reason       string         `json:"reason,omitempty"`
	ReservedAt   time.Time      `json:"reserved_at"`
	ComputedAt   time.Time      `json:"computed_at,omitempty"`
}
