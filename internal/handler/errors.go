package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/bar-booking/internal/logging"
	"github.com/iliyamo/bar-booking/internal/model"
)

// writeError maps domain errors onto HTTP responses.  Anything it does not
// recognise is logged and reported as a 500 without leaking details.
func writeError(c echo.Context, err error) error {
	var (
		ve *model.ValidationError
		te *model.IllegalTransitionError
	)
	switch {
	case errors.As(err, &ve):
		body := echo.Map{"error": ve.Message}
		if ve.Field != "" {
			body["field"] = ve.Field
		}
		return c.JSON(http.StatusBadRequest, body)
	case errors.As(err, &te):
		return c.JSON(http.StatusConflict, echo.Map{"error": te.Error(), "status": te.From})
	case errors.Is(err, model.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
	case errors.Is(err, model.ErrInvalidToken):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrAlreadyCheckedIn):
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	case errors.Is(err, model.ErrBannedFromFreeSlot), errors.Is(err, model.ErrForbidden):
		return c.JSON(http.StatusForbidden, echo.Map{"error": err.Error()})
	}
	logging.FromContext(c.Request().Context()).WithError(err).Error("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
