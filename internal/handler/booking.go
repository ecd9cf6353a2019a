package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/campus-reservation/internal/middleware"
	"github.com/iliyamo/campus-reservation/internal/model"
	"github.com/iliyamo/campus-reservation/internal/service"
	"github.com/iliyamo/campus-reservation/internal/validation"
)

// BookingHandler serves the booking and hold endpoints.  Every route sits
// behind JWTAuth; the requester is always taken from the token, never from
// the body.
type BookingHandler struct {
	coord *service.Coordinator
}

func NewBookingHandler(coord *service.Coordinator) *BookingHandler {
	return &BookingHandler{coord: coord}
}

func bindRequest(c echo.Context) (model.BookingRequest, error) {
	var req model.BookingRequest
	if err := c.Bind(&req); err != nil {
		return req, err
	}
	req.RequesterID = middleware.RequesterID(c)
	return req, nil
}

// Validate handles POST /v1/bookings/validate.  It answers 200 with the
// violations found, an empty list meaning the request would be admitted.
func (h *BookingHandler) Validate(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return badRequest(c, "invalid request body")
	}
	violations, err := h.coord.Validate(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	if violations == nil {
		violations = validation.Violations{}
	}
	return c.JSON(http.StatusOK, echo.Map{"valid": len(violations) == 0, "errors": violations})
}

// Create handles POST /v1/bookings.
func (h *BookingHandler) Create(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return badRequest(c, "invalid request body")
	}
	b, err := h.coord.Reserve(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Get handles GET /v1/bookings/:id.  Only the requester or an admin may
// read a booking.
func (h *BookingHandler) Get(c echo.Context) error {
	b, err := h.coord.Booking(c.Request().Context(), c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	if b.RequesterID != middleware.RequesterID(c) && middleware.Role(c) != model.RoleAdmin {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	}
	return c.JSON(http.StatusOK, b)
}

// Cancel handles DELETE /v1/bookings/:id.
func (h *BookingHandler) Cancel(c echo.Context) error {
	_, err := h.coord.Cancel(c.Request().Context(), c.Param("id"), middleware.RequesterID(c), middleware.Role(c))
	if err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Mine handles GET /v1/my-bookings.
func (h *BookingHandler) Mine(c echo.Context) error {
	bookings, err := h.coord.BookingsFor(c.Request().Context(), middleware.RequesterID(c))
	if err != nil {
		return respondError(c, err)
	}
	if bookings == nil {
		bookings = []model.Booking{}
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": bookings})
}

// Hold handles POST /v1/holds.
func (h *BookingHandler) Hold(c echo.Context) error {
	req, err := bindRequest(c)
	if err != nil {
		return badRequest(c, "invalid request body")
	}
	hold, err := h.coord.Hold(c.Request().Context(), req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, hold)
}

// Confirm handles POST /v1/holds/:token/confirm.  The body carries the
// participants and metadata; unit ids come from the hold.
func (h *BookingHandler) Confirm(c echo.Context) error {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		return badRequest(c, "missing hold token")
	}
	req, err := bindRequest(c)
	if err != nil {
		return badRequest(c, "invalid request body")
	}
	b, err := h.coord.Confirm(c.Request().Context(), token, req)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, b)
}

// Abort handles DELETE /v1/holds/:token.
func (h *BookingHandler) Abort(c echo.Context) error {
	if err := h.coord.Abort(c.Request().Context(), c.Param("token"), middleware.RequesterID(c)); err != nil {
		return respondError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// redact hides participant details from anyone but the requester and
// admins.
func redact(c echo.Context, b model.Booking) model.Booking {
	if b.RequesterID == middleware.RequesterID(c) || middleware.Role(c) == model.RoleAdmin {
		return b
	}
	b.Participants = nil
	b.Metadata = nil
	b.Attachments = nil
	return b
}
