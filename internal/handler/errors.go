package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/iliyamo/campus-reservation/internal/directory"
	"github.com/iliyamo/campus-reservation/internal/repository"
	"github.com/iliyamo/campus-reservation/internal/service"
)

// respondError renders a service or repository error with its HTTP status.
func respondError(c echo.Context, err error) error {
	var (
		verr *service.ValidationError
		cerr *service.ConflictError
		terr *service.TransientError
		derr *service.DuplicateBookingError
	)
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"errors": verr.Violations})
	case errors.As(err, &cerr):
		return c.JSON(http.StatusConflict, echo.Map{"error": string(cerr.Reason), "unit_id": cerr.UnitID})
	case errors.As(err, &derr):
		log.WithError(err).Error("ledger holds a duplicate booking")
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "duplicate_booking", "unit_ids": derr.UnitIDs})
	case errors.As(err, &terr):
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "temporarily_unavailable"})
	case errors.Is(err, repository.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "forbidden"})
	case errors.Is(err, directory.ErrInvalidResource):
		return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": err.Error()})
	case errors.Is(err, repository.ErrConflict):
		return c.JSON(http.StatusConflict, echo.Map{"error": "conflict"})
	}
	log.WithError(err).WithField("path", c.Path()).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
}
