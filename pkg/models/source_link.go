package models

import "time"

// Source link statuses
const (
	SourceLinkStatusActive     = "active"
	SourceLinkStatusSuperseded = "superseded"
	SourceLinkStatusRejected   = "rejected"
)

// SourceLink bridges one external record to one master entity. The pair
// (source_system, source_identifier) is unique, so at most one link exists
// per external identifier at a time; concurrent writers converge on the same
// row through the upsert rather than producing duplicates.
type SourceLink struct {
	ID               int64     `json:"id" db:"id"`
	SourceSystem     string    `json:"source_system" db:"source_system"`
	SourceIdentifier string    `json:"source_identifier" db:"source_identifier"`
	SourceName       string    `json:"source_name" db:"source_name"`
	MasterID         int64     `json:"master_id" db:"master_id"`
	MatchMethod      string    `json:"match_method" db:"match_method"`
	MatchScore       float64   `json:"match_score" db:"match_score"`
	MatchDetails     string    `json:"match_details,omitempty" db:"match_details"`
	Status           string    `json:"status" db:"status"`
	CreatedAt        time.Time `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}
