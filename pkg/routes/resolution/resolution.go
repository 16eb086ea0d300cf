package resolution

import (
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

var validate = validator.New()

// Register registers resolution routes
func Register(g *echo.Group) {
	g.POST("/resolve", ResolveRecord)
}

// ResolveRecord resolves one external record against the master registry.
// Source bridges call this synchronously when they need the decision inline
// instead of going through the Kafka topic.
func ResolveRecord(c echo.Context) error {
	ctx := c.Request().Context()

	var input models.ResolveInput
	if err := c.Bind(&input); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&input); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}
	ctx, cfg, err := ectoinject.GetContext[*config.Config](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	result, err := svc.Resolve(ctx, &input, cfg.MatchConfig())
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, result)
}
