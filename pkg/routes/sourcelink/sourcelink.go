package sourcelink

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/labstack/echo/v4"

	sourcelinkrepo "github.com/Ramsey-B/fern/internal/repositories/sourcelink"
	"github.com/Ramsey-B/fern/pkg/context"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

// Register registers source link routes
func Register(g *echo.Group) {
	g.GET("/:system/:identifier", GetSourceLink)
	g.DELETE("/:system/:identifier", UnlinkSourceRecord)
}

// GetSourceLink returns the active link for an external record
func GetSourceLink(c echo.Context) error {
	ctx := c.Request().Context()

	system := c.Param("system")
	identifier := c.Param("identifier")

	ctx, repo, err := ectoinject.GetContext[*sourcelinkrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	link, err := repo.GetActive(ctx, system, identifier)
	if err != nil {
		return err
	}
	if link == nil {
		return httperror.NewHTTPError(http.StatusNotFound, "no active link for record")
	}

	return c.JSON(http.StatusOK, link)
}

// UnlinkSourceRecord supersedes the active link so the record re-resolves from
// scratch on its next appearance
func UnlinkSourceRecord(c echo.Context) error {
	ctx := c.Request().Context()

	system := c.Param("system")
	identifier := c.Param("identifier")

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	if err := svc.Unlink(ctx, system, identifier, context.GetUserID(ctx)); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}
