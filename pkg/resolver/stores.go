package resolver

import (
	"context"

	"github.com/Ramsey-B/fern/pkg/models"
)

// The resolver depends on narrow store interfaces rather than the concrete
// repositories so the decision logic can be exercised without a database.

// MasterStore is the registry of canonical entities
type MasterStore interface {
	Create(ctx context.Context, entity *models.MasterEntity) (*models.MasterEntity, error)
	Get(ctx context.Context, id int64) (*models.MasterEntity, error)
	FindCandidates(ctx context.Context, normalizedName, city, zip5 string, prefixLength, maxCandidates int) ([]models.MasterEntity, error)
	TouchLastVerified(ctx context.Context, id int64) error
}

// LinkStore persists source-to-master links
type LinkStore interface {
	GetActive(ctx context.Context, sourceSystem, sourceIdentifier string) (*models.SourceLink, error)
	Upsert(ctx context.Context, link *models.SourceLink) (*models.SourceLink, error)
	UpdateStatus(ctx context.Context, sourceSystem, sourceIdentifier, status string) error
}

// AliasStore records alternate names observed for masters
type AliasStore interface {
	Add(ctx context.Context, alias *models.Alias) error
}

// ReviewQueue holds tentative matches awaiting human adjudication
type ReviewQueue interface {
	Queue(ctx context.Context, match *models.PendingMatch) error
	Resolve(ctx context.Context, id int64, status, resolvedBy string) (*models.PendingMatch, error)
	ListOpenForSource(ctx context.Context, sourceSystem, sourceIdentifier string) ([]models.PendingMatch, error)
}

// AuditLog is the append-only decision trail
type AuditLog interface {
	Append(ctx context.Context, entry *models.AuditEntry) error
}
