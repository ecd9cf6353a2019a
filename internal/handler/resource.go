package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-reservation/internal/directory"
	"github.com/iliyamo/campus-reservation/internal/middleware"
	"github.com/iliyamo/campus-reservation/internal/model"
)

type ResourceHandler struct {
	dir *directory.Directory
}

func NewResourceHandler(dir *directory.Directory) *ResourceHandler {
	return &ResourceHandler{dir: dir}
}

// Create handles POST /v1/resources.  Faculty may only publish their own
// availability; admins may publish any kind.
func (h *ResourceHandler) Create(c echo.Context) error {
	var res model.Resource
	if err := c.Bind(&res); err != nil {
		return badRequest(c, "invalid request body")
	}
	if middleware.Role(c) == model.RoleFaculty && res.Kind != model.ResourceFaculty {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "faculty may only publish availability"})
	}
	stored, units, err := h.dir.Publish(c.Request().Context(), res)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, echo.Map{"resource": stored, "units": len(units)})
}

// Get handles GET /v1/resources/:id.
func (h *ResourceHandler) Get(c echo.Context) error {
	res, err := h.dir.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}
