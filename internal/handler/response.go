package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arfaar/swapfinity/internal/media"
	"github.com/arfaar/swapfinity/internal/service"
)

type errorPayload struct {
	Code    string               `json:"code"`
	Message string               `json:"message"`
	Fields  []service.FieldError `json:"fields,omitempty"`
}

type ErrorResponse struct {
	Error errorPayload `json:"error"`
}

func NewErrorResponse(code, message string) ErrorResponse {
	return ErrorResponse{
		Error: errorPayload{
			Code:    code,
			Message: message,
		},
	}
}

// writeError maps service failures onto HTTP statuses. Unknown errors are
// logged and reported as 500 without their details.
func writeError(c echo.Context, err error) error {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		resp := NewErrorResponse("validation_error", verr.Error())
		resp.Error.Fields = verr.Errors
		return c.JSON(http.StatusBadRequest, resp)
	}
	msg := err.Error()
	var serr *service.Error
	if errors.As(err, &serr) {
		msg = serr.Message
	}
	switch {
	case errors.Is(err, service.ErrValidation),
		errors.Is(err, media.ErrUnknownKind),
		errors.Is(err, media.ErrUnsupportedType):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", msg))
	case errors.Is(err, media.ErrTooLarge):
		return c.JSON(http.StatusRequestEntityTooLarge, NewErrorResponse("too_large", msg))
	case errors.Is(err, service.ErrAuthRequired):
		return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", msg))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", msg))
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", msg))
	case errors.Is(err, service.ErrAlreadyResolved):
		return c.JSON(http.StatusConflict, NewErrorResponse("already_resolved", msg))
	case errors.Is(err, service.ErrDuplicateRequest):
		return c.JSON(http.StatusConflict, NewErrorResponse("duplicate_request", msg))
	case errors.Is(err, service.ErrConflict):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", msg))
	case errors.Is(err, service.ErrTransient):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "service temporarily unavailable, try again"))
	}
	slog.Error("request failed", "method", c.Request().Method, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", "internal server error"))
}

func currentUID(c echo.Context) string {
	uid, _ := c.Get("uid").(string)
	return uid
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}
