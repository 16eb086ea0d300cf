package audit

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	auditrepo "github.com/Ramsey-B/fern/internal/repositories/audit"
)

// Register registers audit trail routes
func Register(g *echo.Group) {
	g.GET("", ListAuditEntries)
}

// ListAuditEntries returns the decision history for an external record or a
// master entity, newest first
func ListAuditEntries(c echo.Context) error {
	ctx := c.Request().Context()

	system := c.QueryParam("source_system")
	identifier := c.QueryParam("source_identifier")
	masterParam := c.QueryParam("master_id")
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	ctx, repo, err := ectoinject.GetContext[*auditrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if masterParam != "" {
		masterID, err := strconv.ParseInt(masterParam, 10, 64)
		if err != nil || masterID < 1 {
			return httperror.NewHTTPError(http.StatusBadRequest, "invalid master_id")
		}
		entries, err := repo.ListByMaster(ctx, masterID, limit)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, entries)
	}

	if system == "" || identifier == "" {
		return httperror.NewHTTPError(http.StatusBadRequest, "source_system and source_identifier (or master_id) are required")
	}

	entries, err := repo.ListBySource(ctx, system, identifier, limit)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entries)
}
