package models

import "time"

// MasterEntity is the canonical, deduplicated representation of a provider or
// contractor. Normalized columns are always derived from the display columns;
// uniqueness of (canonical_name, city) is a soft invariant, not a constraint —
// resolution is probabilistic and duplicates can still occur.
type MasterEntity struct {
	ID                int64      `json:"id" db:"id"`
	CanonicalName     string     `json:"canonical_name" db:"canonical_name"`
	DisplayName       string     `json:"display_name" db:"display_name"`
	NormalizedAddress string     `json:"normalized_address,omitempty" db:"normalized_address"`
	DisplayAddress    string     `json:"display_address,omitempty" db:"display_address"`
	City              string     `json:"city,omitempty" db:"city"`
	State             string     `json:"state,omitempty" db:"state"`
	Zip5              string     `json:"zip5,omitempty" db:"zip5"`
	NormalizedPhone   string     `json:"normalized_phone,omitempty" db:"normalized_phone"`
	Email             string     `json:"email,omitempty" db:"email"`
	LicenseNumber     string     `json:"license_number,omitempty" db:"license_number"`
	LicenseType       string     `json:"license_type,omitempty" db:"license_type"`
	Capacity          *int       `json:"capacity,omitempty" db:"capacity"`
	Active            bool       `json:"active" db:"active"`
	FirstSeen         time.Time  `json:"first_seen" db:"first_seen"`
	LastVerified      *time.Time `json:"last_verified,omitempty" db:"last_verified"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// CreateMasterEntityRequest is the request for registering a new master entity.
// Normalized fields are computed server-side; callers supply display values only.
type CreateMasterEntityRequest struct {
	Name          string `json:"name" validate:"required"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	State         string `json:"state,omitempty"`
	Zip           string `json:"zip,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty" validate:"omitempty,email"`
	LicenseNumber string `json:"license_number,omitempty"`
	LicenseType   string `json:"license_type,omitempty"`
	Capacity      *int   `json:"capacity,omitempty"`

	// Provenance of the registration; an identifier links the creating record.
	SourceSystem     string `json:"source_system" validate:"required"`
	SourceIdentifier string `json:"source_identifier,omitempty"`
}

// MasterEntityListResponse is the response for listing master entities
type MasterEntityListResponse struct {
	Items      []MasterEntity `json:"items"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
}
