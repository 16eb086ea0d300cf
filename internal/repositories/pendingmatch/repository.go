package pendingmatch

import (
	"context"
	"fmt"
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
	"id", "source_system", "source_identifier", "source_name", "candidate_master_id",
	"match_score", "match_details", "status", "created_at", "resolved_at", "resolved_by",
}

// Repository handles pending match persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new pending match repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Queue enqueues a candidate pair for human review. Re-queueing the same pair
// is a no-op: the stored score and any decision already made are kept.
func (r *Repository) Queue(ctx context.Context, match *models.PendingMatch) error {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.Queue")
	defer span.End()

	match.Status = models.PendingMatchStatusPending
	match.CreatedAt = time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto("pending_matches")
	sb.Cols("source_system", "source_identifier", "source_name", "candidate_master_id", "match_score", "match_details", "status", "created_at")
	sb.Values(match.SourceSystem, match.SourceIdentifier, match.SourceName, match.CandidateMasterID, match.MatchScore, match.MatchDetails, match.Status, match.CreatedAt)
	sb.OnConflictDoNothing("source_system", "source_identifier", "candidate_master_id")

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"source_system":       match.SourceSystem,
			"source_identifier":   match.SourceIdentifier,
			"candidate_master_id": match.CandidateMasterID,
		}).Error("Failed to queue pending match")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to queue pending match")
	}

	return nil
}

// Get retrieves a pending match by ID
func (r *Repository) Get(ctx context.Context, id int64) (*models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("pending_matches")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var match models.PendingMatch
	if err := r.db.GetContext(ctx, &match, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("pending match %d not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get pending match")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get pending match")
	}

	return &match, nil
}

// List retrieves pending matches, highest score first
func (r *Repository) List(ctx context.Context, status string, limit, offset int) ([]models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("pending_matches")
	if status != "" {
		sb.Where(sb.Equal("status", status))
	}
	sb.OrderBy("match_score DESC", "created_at ASC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var matches []models.PendingMatch
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending matches")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending matches")
	}

	return matches, nil
}

// Resolve marks a pending match approved or rejected. Only pending rows can be
// resolved; resolving an already-decided match returns a conflict.
func (r *Repository) Resolve(ctx context.Context, id int64, status, resolvedBy string) (*models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.Resolve")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update("pending_matches")
	ub.Set(
		ub.Assign("status", status),
		ub.Assign("resolved_at", now),
		ub.Assign("resolved_by", resolvedBy),
	)
	ub.Where(
		ub.Equal("id", id),
		ub.Equal("status", models.PendingMatchStatusPending),
	)

	query, args := ub.Build()
	query += " RETURNING " + columnList()

	var match models.PendingMatch
	if err := r.db.GetContext(ctx, &match, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusConflict, fmt.Sprintf("pending match %d is not pending", id))
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"pending_match_id": id}).Error("Failed to resolve pending match")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to resolve pending match")
	}

	return &match, nil
}

// ListOpenForSource retrieves undecided candidates for one external record
func (r *Repository) ListOpenForSource(ctx context.Context, sourceSystem, sourceIdentifier string) ([]models.PendingMatch, error) {
	ctx, span := tracing.StartSpan(ctx, "pendingmatch.Repository.ListOpenForSource")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("pending_matches")
	sb.Where(
		sb.Equal("source_system", sourceSystem),
		sb.Equal("source_identifier", sourceIdentifier),
		sb.Equal("status", models.PendingMatchStatusPending),
	)
	sb.OrderBy("match_score DESC")

	query, args := sb.Build()
	var matches []models.PendingMatch
	if err := r.db.SelectContext(ctx, &matches, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list pending matches for source")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list pending matches")
	}

	return matches, nil
}

func columnList() string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
