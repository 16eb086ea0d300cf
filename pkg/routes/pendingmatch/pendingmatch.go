package pendingmatch

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	pendingmatchrepo "github.com/Ramsey-B/fern/internal/repositories/pendingmatch"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

// Register registers pending match routes
func Register(g *echo.Group) {
	g.GET("", ListPendingMatches)
	g.GET("/:id", GetPendingMatch)
	g.POST("/:id/approve", ApprovePendingMatch)
	g.POST("/:id/reject", RejectPendingMatch)
}

// ListPendingMatches lists matches awaiting review, highest score first
func ListPendingMatches(c echo.Context) error {
	ctx := c.Request().Context()

	status := c.QueryParam("status")
	if status == "" {
		status = models.PendingMatchStatusPending
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))

	ctx, repo, err := ectoinject.GetContext[*pendingmatchrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	matches, err := repo.List(ctx, status, limit, offset)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.PendingMatchListResponse{
		Items:      matches,
		TotalCount: len(matches),
	})
}

// GetPendingMatch gets a pending match by ID
func GetPendingMatch(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*pendingmatchrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	match, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, match)
}

// ApprovePendingMatch confirms a reviewed match and writes the source link
func ApprovePendingMatch(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	match, err := svc.ApprovePendingMatch(ctx, id, context.GetUserID(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, match)
}

// RejectPendingMatch records that the candidate pair is not the same entity
func RejectPendingMatch(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	match, err := svc.RejectPendingMatch(ctx, id, context.GetUserID(ctx))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, match)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid pending match id")
	}
	return id, nil
}
