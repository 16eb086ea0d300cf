package models

import "time"

// Audit actions
const (
	AuditActionMatched      = "matched"
	AuditActionCreated      = "created"
	AuditActionRejected     = "rejected"
	AuditActionManualLink   = "manual_link"
	AuditActionManualUnlink = "manual_unlink"
)

// AuditEntry is an immutable log row recording one resolution decision.
// Rows are append-only and written on every decision regardless of outcome.
type AuditEntry struct {
	ID               int64     `json:"id" db:"id"`
	MasterID         *int64    `json:"master_id,omitempty" db:"master_id"`
	SourceSystem     string    `json:"source_system" db:"source_system"`
	SourceIdentifier string    `json:"source_identifier" db:"source_identifier"`
	SourceName       string    `json:"source_name" db:"source_name"`
	Action           string    `json:"action" db:"action"`
	MatchScore       float64   `json:"match_score" db:"match_score"`
	MatchMethod      string    `json:"match_method" db:"match_method"`
	Details          string    `json:"details,omitempty" db:"details"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
}
