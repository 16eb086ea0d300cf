package models

import "time"

// Pending match statuses
const (
	PendingMatchStatusPending  = "pending"
	PendingMatchStatusApproved = "approved"
	PendingMatchStatusRejected = "rejected"
)

// PendingMatch is a tentative, unconfirmed candidate awaiting human
// adjudication. (source_system, source_identifier, candidate_master_id) is
// unique; queueing the same candidate twice is a no-op.
type PendingMatch struct {
	ID                int64      `json:"id" db:"id"`
	SourceSystem      string     `json:"source_system" db:"source_system"`
	SourceIdentifier  string     `json:"source_identifier" db:"source_identifier"`
	SourceName        string     `json:"source_name" db:"source_name"`
	CandidateMasterID int64      `json:"candidate_master_id" db:"candidate_master_id"`
	MatchScore        float64    `json:"match_score" db:"match_score"`
	MatchDetails      string     `json:"match_details,omitempty" db:"match_details"`
	Status            string     `json:"status" db:"status"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt        *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolvedBy        *string    `json:"resolved_by,omitempty" db:"resolved_by"`
}

// PendingMatchListResponse is the response for listing pending matches
type PendingMatchListResponse struct {
	Items      []PendingMatch `json:"items"`
	TotalCount int            `json:"total_count"`
}
