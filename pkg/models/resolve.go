package models

import "encoding/json"

// Match methods — the terminal state of a resolution call
const (
	MatchMethodExistingLink  = "existing_link"
	MatchMethodAutoMatch     = "auto_match"
	MatchMethodNeedsReview   = "needs_review"
	MatchMethodLowConfidence = "low_confidence"
	MatchMethodNoCandidates  = "no_candidates"
)

// MatchDetailsSchemaVersion is the current schema version for persisted
// match detail blobs. Bump when the detail shape changes so historical
// audit entries stay parseable.
const MatchDetailsSchemaVersion = 1

// ResolveInput is one external record handed to the resolver by a
// scraper/bridge collaborator. Name and SourceSystem are required; every
// other field degrades to "no signal" when absent.
type ResolveInput struct {
	Name             string `json:"name" validate:"required"`
	Address          string `json:"address,omitempty"`
	City             string `json:"city,omitempty"`
	Zip              string `json:"zip,omitempty"`
	Phone            string `json:"phone,omitempty"`
	SourceSystem     string `json:"source_system" validate:"required"`
	SourceIdentifier string `json:"source_identifier,omitempty"`
}

// MatchDetail is one per-field similarity contribution to a composite score.
type MatchDetail struct {
	Criterion    string  `json:"criterion"`
	SourceValue  string  `json:"source_value"`
	MatchedValue string  `json:"matched_value"`
	Score        float64 `json:"score"`
	Weight       float64 `json:"weight"`
}

// MatchDetails is the versioned blob persisted on source links, pending
// matches and audit entries.
type MatchDetails struct {
	Version  int           `json:"version"`
	Criteria []MatchDetail `json:"criteria"`
}

// Encode serializes the details for persistence. Returns "" on the
// (unreachable) marshal failure so persistence stays best-effort.
func (d MatchDetails) Encode() string {
	b, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	return string(b)
}

// ResolveResult is the outcome of one resolution call.
type ResolveResult struct {
	Matched      bool          `json:"matched"`
	MasterID     *int64        `json:"master_id"`
	Score        float64       `json:"score"`
	MatchMethod  string        `json:"match_method"`
	MatchDetails []MatchDetail `json:"match_details,omitempty"`
	NeedsReview  bool          `json:"needs_review"`
}

// MatchConfig carries the field weights and decision thresholds for one
// resolution call. It is always passed explicitly — never a hidden global —
// so scoring stays reproducible given the same config.
type MatchConfig struct {
	NameWeight    float64 `json:"name_weight"`
	AddressWeight float64 `json:"address_weight"`
	CityWeight    float64 `json:"city_weight"`
	ZipWeight     float64 `json:"zip_weight"`
	PhoneWeight   float64 `json:"phone_weight"`

	AutoMatchThreshold float64 `json:"auto_match_threshold"`
	ReviewThreshold    float64 `json:"review_threshold"`
	RejectThreshold    float64 `json:"reject_threshold"`

	// Candidate retrieval bounds. PrefixLength is the normalized-name prefix
	// used for blocking; MaxCandidates caps the retrieved set.
	PrefixLength  int `json:"prefix_length"`
	MaxCandidates int `json:"max_candidates"`
}

// DefaultMatchConfig returns the standard weights and thresholds.
func DefaultMatchConfig() MatchConfig {
	return MatchConfig{
		NameWeight:         0.35,
		AddressWeight:      0.30,
		CityWeight:         0.15,
		ZipWeight:          0.15,
		PhoneWeight:        0.05,
		AutoMatchThreshold: 0.85,
		ReviewThreshold:    0.60,
		RejectThreshold:    0.40,
		PrefixLength:       10,
		MaxCandidates:      100,
	}
}
