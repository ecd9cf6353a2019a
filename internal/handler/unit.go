package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-reservation/internal/catalog"
	"github.com/iliyamo/campus-reservation/internal/directory"
	"github.com/iliyamo/campus-reservation/internal/model"
	"github.com/iliyamo/campus-reservation/internal/service"
)

// UnitHandler serves the read-only catalog.
type UnitHandler struct {
	catalog *catalog.Catalog
	coord   *service.Coordinator
	dir     *directory.Directory
}

func NewUnitHandler(coord *service.Coordinator, dir *directory.Directory) *UnitHandler {
	return &UnitHandler{catalog: coord.Catalog(), coord: coord, dir: dir}
}

func parseTimeParam(c echo.Context, name string) (*time.Time, bool) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, false
	}
	return &t, true
}

// List handles GET /v1/units?resourceId=&status=&from=&to=.
func (h *UnitHandler) List(c echo.Context) error {
	resourceID := strings.TrimSpace(c.QueryParam("resourceId"))
	if resourceID == "" {
		return badRequest(c, "resourceId is required")
	}
	from, ok := parseTimeParam(c, "from")
	if !ok {
		return badRequest(c, "from must be RFC3339")
	}
	to, ok := parseTimeParam(c, "to")
	if !ok {
		return badRequest(c, "to must be RFC3339")
	}
	status := model.UnitStatus(strings.ToLower(strings.TrimSpace(c.QueryParam("status"))))
	if status != "" && !status.Valid() {
		return badRequest(c, "unknown status")
	}

	ctx := c.Request().Context()
	if _, err := h.dir.Get(ctx, resourceID); err != nil {
		return respondError(c, err)
	}
	units, err := h.catalog.ListUnits(ctx, resourceID, catalog.Filter{Status: status, From: from, To: to})
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"units": units})
}

// Get handles GET /v1/units/:id.
func (h *UnitHandler) Get(c echo.Context) error {
	u, err := h.catalog.GetUnit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// Booking handles GET /v1/units/:id/booking.  Participants are only shown
// to the booking's requester and admins.
func (h *UnitHandler) Booking(c echo.Context) error {
	b, err := h.coord.BookingForUnit(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, redact(c, *b))
}

// Seat handles GET /v1/resources/:id/seats/:label, looking a seat up by its
// printed label.
func (h *UnitHandler) Seat(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := h.dir.SeatUnitID(ctx, c.Param("id"), c.Param("label"))
	if err != nil {
		return respondError(c, err)
	}
	u, err := h.catalog.GetUnit(ctx, id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
