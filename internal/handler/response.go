package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/shinyyama/herald-backend/internal/repository"
	"github.com/shinyyama/herald-backend/internal/reqctx"
	"github.com/shinyyama/herald-backend/internal/service"
)

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
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

func currentUID(c echo.Context) (string, bool) {
	uid, _ := c.Get("uid").(string)
	return uid, uid != ""
}

func unauthorized(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, NewErrorResponse("unauthorized", "missing uid"))
}

// bindValid binds the request body into req and validates it, returning the
// message for a 400 when either step fails.
func bindValid(c echo.Context, req interface{}) (string, bool) {
	if err := c.Bind(req); err != nil {
		return "invalid body", false
	}
	if err := c.Validate(req); err != nil {
		return validationMessage(err), false
	}
	return "", true
}

func badRequest(c echo.Context, msg string) error {
	return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", msg))
}

func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	return id, err == nil && id > 0
}

func queryLimit(c echo.Context, def int) int {
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

var (
	badRequestErrors = []error{
		service.ErrInvalidAmount,
		service.ErrBelowMinimum,
		service.ErrInsufficientBalance,
		service.ErrSelfTransfer,
		service.ErrEmptyCart,
		service.ErrInvalidItem,
		service.ErrEmptyContent,
		service.ErrMessageTooLong,
		service.ErrInvalidUsername,
		service.ErrUnsupportedType,
	}
	notFoundErrors = []error{
		service.ErrNotFound,
		service.ErrUserNotFound,
		service.ErrRecipientWalletNotFound,
		service.ErrWalletNotFound,
	}
)

func isAny(err error, targets []error) bool {
	for _, t := range targets {
		if errors.Is(err, t) {
			return true
		}
	}
	return false
}

// serviceError writes the response for a service error. Known errors carry
// their own message; anything else is logged and reported as fallback.
func serviceError(c echo.Context, err error, fallback string) error {
	switch {
	case isAny(err, badRequestErrors):
		return c.JSON(http.StatusBadRequest, NewErrorResponse("bad_request", err.Error()))
	case isAny(err, notFoundErrors):
		return c.JSON(http.StatusNotFound, NewErrorResponse("not_found", err.Error()))
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, NewErrorResponse("forbidden", err.Error()))
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrTaskCompleted):
		return c.JSON(http.StatusConflict, NewErrorResponse("conflict", err.Error()))
	case errors.Is(err, repository.ErrDBNotReady):
		return c.JSON(http.StatusServiceUnavailable, NewErrorResponse("unavailable", "database not ready"))
	}
	reqctx.Logger(c.Request().Context(), slog.Default()).Error(fallback, "path", c.Path(), "error", err)
	return c.JSON(http.StatusInternalServerError, NewErrorResponse("internal_error", fallback))
}
