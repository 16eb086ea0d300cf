package entityalias

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

// Repository handles entity alias persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity alias repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Add records an alternate name for a master entity. Re-adding an alias the
// entity already carries is a no-op.
func (r *Repository) Add(ctx context.Context, alias *models.Alias) error {
	ctx, span := tracing.StartSpan(ctx, "entityalias.Repository.Add")
	defer span.End()

	alias.CreatedAt = time.Now().UTC()

	sb := database.NewInsertBuilder()
	sb.InsertInto("entity_aliases")
	sb.Cols("master_id", "alias_display", "alias_normalized", "alias_type", "source", "confidence", "created_at")
	sb.Values(alias.MasterID, alias.AliasDisplay, alias.AliasNormalized, alias.AliasType, alias.Source, alias.Confidence, alias.CreatedAt)
	sb.OnConflictDoNothing("master_id", "alias_normalized")

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"master_id": alias.MasterID}).Error("Failed to add alias")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to add alias")
	}

	return nil
}

// ListByMaster retrieves all aliases for a master entity
func (r *Repository) ListByMaster(ctx context.Context, masterID int64) ([]models.Alias, error) {
	ctx, span := tracing.StartSpan(ctx, "entityalias.Repository.ListByMaster")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "master_id", "alias_display", "alias_normalized", "alias_type", "source", "confidence", "created_at")
	sb.From("entity_aliases")
	sb.Where(sb.Equal("master_id", masterID))
	sb.OrderBy("alias_normalized ASC")

	query, args := sb.Build()
	var aliases []models.Alias
	if err := r.db.SelectContext(ctx, &aliases, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list aliases")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list aliases")
	}

	return aliases, nil
}
