package masterentity

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

var columns = []string{
	"id", "canonical_name", "display_name", "normalized_address", "display_address",
	"city", "state", "zip5", "normalized_phone", "email", "license_number",
	"license_type", "capacity", "active", "first_seen", "last_verified",
	"created_at", "updated_at",
}

// Repository handles master entity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new master entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new master entity and returns it with its assigned ID
func (r *Repository) Create(ctx context.Context, entity *models.MasterEntity) (*models.MasterEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "masterentity.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	entity.Active = true
	entity.FirstSeen = now
	entity.CreatedAt = now
	entity.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("master_entities")
	sb.Cols("canonical_name", "display_name", "normalized_address", "display_address", "city", "state", "zip5", "normalized_phone", "email", "license_number", "license_type", "capacity", "active", "first_seen", "last_verified", "created_at", "updated_at")
	sb.Values(entity.CanonicalName, entity.DisplayName, entity.NormalizedAddress, entity.DisplayAddress, entity.City, entity.State, entity.Zip5, entity.NormalizedPhone, entity.Email, entity.LicenseNumber, entity.LicenseType, entity.Capacity, entity.Active, entity.FirstSeen, entity.LastVerified, entity.CreatedAt, entity.UpdatedAt)

	query, args := sb.Build()
	query += " RETURNING id"

	if err := r.db.GetContext(ctx, &entity.ID, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"canonical_name": entity.CanonicalName}).Error("Failed to create master entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create master entity")
	}

	return entity, nil
}

// Get retrieves a master entity by ID
func (r *Repository) Get(ctx context.Context, id int64) (*models.MasterEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "masterentity.Repository.Get")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("master_entities")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var entity models.MasterEntity
	if err := r.db.GetContext(ctx, &entity, query, args...); err != nil {
		if err.Error() == "sql: no rows in result set" {
			return nil, httperror.NewHTTPError(http.StatusNotFound, fmt.Sprintf("master entity %d not found", id))
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get master entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get master entity")
	}

	return &entity, nil
}

// List retrieves master entities ordered by canonical name
func (r *Repository) List(ctx context.Context, activeOnly bool, limit, offset int) ([]models.MasterEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "masterentity.Repository.List")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("master_entities")
	if activeOnly {
		sb.Where(sb.Equal("active", true))
	}
	sb.OrderBy("canonical_name ASC", "id ASC")
	sb.Limit(limit)
	sb.Offset(offset)

	query, args := sb.Build()
	var entities []models.MasterEntity
	if err := r.db.SelectContext(ctx, &entities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list master entities")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list master entities")
	}

	return entities, nil
}

// Count returns the total number of master entities
func (r *Repository) Count(ctx context.Context, activeOnly bool) (int, error) {
	ctx, span := tracing.StartSpan(ctx, "masterentity.Repository.Count")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("master_entities")
	if activeOnly {
		sb.Where(sb.Equal("active", true))
	}

	query, args := sb.Build()
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count master entities")
		return 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count master entities")
	}

	return count, nil
}

// Deactivate soft-deletes a master entity and supersedes its active source
// links in the same transaction. Audit history is left untouched.
func (r *Repository) Deactivate(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "masterentity.Repository.Deactivate")
	defer span.End()

	txCtx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to start transaction")
	}
	// Rollback with the pre-transaction context: txCtx carries the open-tx
	// marker, which makes Rollback defer to the (nonexistent) outer owner.
	defer tx.Rollback(ctx)

	now := time.Now().UTC()

	ub := database.NewUpdateBuilder()
	ub.Update("master_entities")
	ub.Set(
		ub.Assign("active", false),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"master_id": id}).Error("Failed to deactivate master entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate master entity")
	}

	lb := database.NewUpdateBuilder()
	lb.Update("source_links")
	lb.Set(
		lb.Assign("status", models.SourceLinkStatusSuperseded),
		lb.Assign("updated_at", now),
	)
	lb.Where(lb.Equal("master_id", id), lb.Equal("status", models.SourceLinkStatusActive))

	query, args = lb.Build()
	if _, err := tx.ExecContext(txCtx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"master_id": id}).Error("Failed to supersede source links")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate master entity")
	}

	if err := tx.Commit(txCtx); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"master_id": id}).Error("Failed to commit deactivation")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to deactivate master entity")
	}

	return nil
}

// TouchLastVerified records that a source system re-confirmed this entity
func (r *Repository) TouchLastVerified(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "masterentity.Repository.TouchLastVerified")
	defer span.End()

	now := time.Now().UTC()
	ub := database.NewUpdateBuilder()
	ub.Update("master_entities")
	ub.Set(
		ub.Assign("last_verified", now),
		ub.Assign("updated_at", now),
	)
	ub.Where(ub.Equal("id", id))

	query, args := ub.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"master_id": id}).Error("Failed to touch last_verified")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update master entity")
	}

	return nil
}

// FindCandidates retrieves active master entities that block with the incoming
// record: a shared normalized-name prefix (on the canonical name or any alias)
// or the same city and zip. The result set is capped; scoring happens in the
// resolver, not here.
func (r *Repository) FindCandidates(ctx context.Context, normalizedName, city, zip5 string, prefixLength, maxCandidates int) ([]models.MasterEntity, error) {
	ctx, span := tracing.StartSpan(ctx, "masterentity.Repository.FindCandidates")
	defer span.End()

	query, args := candidateQuery(normalizedName, city, zip5, prefixLength, maxCandidates)

	var candidates []models.MasterEntity
	if err := r.db.SelectContext(ctx, &candidates, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to find match candidates")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to find match candidates")
	}

	return candidates, nil
}

// candidateQuery builds the blocking query. The name prefix is a LIKE match and
// must be wildcard-escaped; the city/zip block is an exact comparison (UPPER
// equality, never a pattern match) so dirty input cannot broad-match.
func candidateQuery(normalizedName, city, zip5 string, prefixLength, maxCandidates int) (string, []any) {
	if prefixLength < 1 {
		prefixLength = 10
	}
	if maxCandidates < 1 {
		maxCandidates = 100
	}

	prefix := normalizedName
	if len(prefix) > prefixLength {
		prefix = prefix[:prefixLength]
	}

	conditions := []string{"(m.canonical_name LIKE $1 OR a.alias_normalized LIKE $1)"}
	args := []any{escapeLike(prefix) + "%"}
	if city != "" && zip5 != "" {
		conditions = append(conditions, "(UPPER(m.city) = $2 AND m.zip5 = $3)")
		args = append(args, city, zip5)
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (m.id) %s
		FROM master_entities m
		LEFT JOIN entity_aliases a ON a.master_id = m.id
		WHERE m.active = TRUE
		AND (%s)
		ORDER BY m.id
		LIMIT %d
	`, prefixedColumns("m"), strings.Join(conditions, " OR "), maxCandidates)

	return query, args
}

func prefixedColumns(alias string) string {
	prefixed := make([]string, len(columns))
	for i, c := range columns {
		prefixed[i] = alias + "." + c
	}
	return strings.Join(prefixed, ", ")
}

// escapeLike escapes LIKE metacharacters so a prefix containing % or _ matches
// literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
