package masterentity

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectoinject"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	masterentityrepo "github.com/Ramsey-B/fern/internal/repositories/masterentity"
	"github.com/Ramsey-B/fern/internal/repositories/sourcelink"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/resolver"
)

var validate = validator.New()

// Register registers master entity routes
func Register(g *echo.Group) {
	g.POST("", CreateMasterEntity)
	g.GET("", ListMasterEntities)
	g.GET("/:id", GetMasterEntity)
	g.DELETE("/:id", DeactivateMasterEntity)
	g.GET("/:id/links", ListMasterEntityLinks)
}

// CreateMasterEntity registers a new master entity
func CreateMasterEntity(c echo.Context) error {
	ctx := c.Request().Context()

	var req models.CreateMasterEntityRequest
	if err := c.Bind(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx, svc, err := ectoinject.GetContext[*resolver.Service](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entity, err := svc.CreateMaster(ctx, &req)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, entity)
}

// GetMasterEntity gets a master entity by ID
func GetMasterEntity(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*masterentityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entity, err := repo.Get(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, entity)
}

// ListMasterEntities lists master entities with pagination
func ListMasterEntities(c echo.Context) error {
	ctx := c.Request().Context()

	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	activeOnly := c.QueryParam("include_inactive") != "true"

	ctx, repo, err := ectoinject.GetContext[*masterentityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	entities, err := repo.List(ctx, activeOnly, limit, offset)
	if err != nil {
		return err
	}
	total, err := repo.Count(ctx, activeOnly)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, models.MasterEntityListResponse{
		Items:      entities,
		TotalCount: total,
	})
}

// DeactivateMasterEntity soft-deactivates a master entity
func DeactivateMasterEntity(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*masterentityrepo.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	// 404 before deactivating so the caller can tell a bad ID from success
	if _, err := repo.Get(ctx, id); err != nil {
		return err
	}
	if err := repo.Deactivate(ctx, id); err != nil {
		return err
	}

	return c.NoContent(http.StatusNoContent)
}

// ListMasterEntityLinks lists the source links pointing at a master entity
func ListMasterEntityLinks(c echo.Context) error {
	ctx := c.Request().Context()

	id, err := parseID(c)
	if err != nil {
		return err
	}

	ctx, repo, err := ectoinject.GetContext[*sourcelink.Repository](ctx)
	if err != nil {
		return httperror.NewHTTPError(http.StatusInternalServerError, "service unavailable")
	}

	links, err := repo.ListByMaster(ctx, id)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, links)
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "invalid master entity id")
	}
	return id, nil
}
