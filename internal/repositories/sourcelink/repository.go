package sourcelink

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var columns = []string{
	"id", "source_system", "source_identifier", "source_name", "master_id",
	"match_method", "match_score", "match_details", "status", "created_at", "updated_at",
}

// Repository handles source link persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new source link repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// GetActive returns the active link for an external identifier, or nil when
// the record has never been linked.
func (r *Repository) GetActive(ctx context.Context, sourceSystem, sourceIdentifier string) (*models.SourceLink, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.GetActive")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("source_links")
	sb.Where(
		sb.Equal("source_system", sourceSystem),
		sb.Equal("source_identifier", sourceIdentifier),
		sb.Equal("status", models.SourceLinkStatusActive),
	)

	query, args := sb.Build()
	var link models.SourceLink
	if err := r.db.GetContext(ctx, &link, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, nil // never linked
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get source link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get source link")
	}

	return &link, nil
}

// Upsert writes the link for an external identifier. Replaying the same record
// converges on the same row; a re-resolution that lands on a different master
// repoints the link in place.
func (r *Repository) Upsert(ctx context.Context, link *models.SourceLink) (*models.SourceLink, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.Upsert")
	defer span.End()

	now := time.Now().UTC()
	link.Status = models.SourceLinkStatusActive
	link.CreatedAt = now
	link.UpdatedAt = now

	sb := database.NewInsertBuilder()
	sb.InsertInto("source_links")
	sb.Cols("source_system", "source_identifier", "source_name", "master_id", "match_method", "match_score", "match_details", "status", "created_at", "updated_at")
	sb.Values(link.SourceSystem, link.SourceIdentifier, link.SourceName, link.MasterID, link.MatchMethod, link.MatchScore, link.MatchDetails, link.Status, link.CreatedAt, link.UpdatedAt)

	ub := sb.OnConflict("source_system", "source_identifier")
	ub.Set(
		ub.Assign("source_name", database.Excluded("source_name")),
		ub.Assign("master_id", database.Excluded("master_id")),
		ub.Assign("match_method", database.Excluded("match_method")),
		ub.Assign("match_score", database.Excluded("match_score")),
		ub.Assign("match_details", database.Excluded("match_details")),
		ub.Assign("status", database.Excluded("status")),
		ub.Assign("updated_at", database.Excluded("updated_at")),
	)

	query, args := sb.Build()
	query += " RETURNING id"

	if err := r.db.GetContext(ctx, &link.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_system":     link.SourceSystem,
			"source_identifier": link.SourceIdentifier,
		}).Error("Failed to upsert source link")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to upsert source link")
	}

	return link, nil
}

// ListByMaster retrieves all links pointing at a master entity
func (r *Repository) ListByMaster(ctx context.Context, masterID int64) ([]models.SourceLink, error) {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.ListByMaster")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("source_links")
	sb.Where(sb.Equal("master_id", masterID))
	sb.OrderBy("source_system ASC", "source_identifier ASC")

	query, args := sb.Build()
	var links []models.SourceLink
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list source links")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list source links")
	}

	return links, nil
}

// UpdateStatus transitions a link to rejected or superseded. The row is kept
// so the linkage history survives an unlink.
func (r *Repository) UpdateStatus(ctx context.Context, sourceSystem, sourceIdentifier, status string) error {
	ctx, span := tracing.StartSpan(ctx, "sourcelink.Repository.UpdateStatus")
	defer span.End()

	ub := database.NewUpdateBuilder()
	ub.Update("source_links")
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("updated_at", time.Now().UTC()),
	)
	ub.Where(
		ub.Equal("source_system", sourceSystem),
		ub.Equal("source_identifier", sourceIdentifier),
	)

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_system":     sourceSystem,
			"source_identifier": sourceIdentifier,
			"status":            status,
		}).Error("Failed to update source link status")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update source link")
	}

	return nil
}
