package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/99minutos/accounts-api/internal/api/handler"
	"github.com/99minutos/accounts-api/internal/core/domain"
)

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps domain errors to their HTTP status codes.
//   - Logs unexpected errors with the request that caused them.
//   - Renders the response envelope with success=false.
//
// The internal cause is only copied into the envelope when exposeErrors is set.
func NewHTTPErrorHandler(log zerolog.Logger, exposeErrors bool) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := resolveError(err, log, c)
		if exposeErrors && body.RequestedURL == "" {
			body.Error = err.Error()
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, body)
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, handler.Envelope) {
	// Echo's own errors (unknown route, body limit, auth middleware).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		if he.Code == http.StatusNotFound && errors.Is(err, echo.ErrNotFound) {
			return http.StatusNotFound, handler.Envelope{
				Message:      "Route not found",
				RequestedURL: c.Request().URL.RequestURI(),
			}
		}
		return he.Code, handler.Envelope{Message: fmt.Sprintf("%v", he.Message)}
	}

	var (
		ve *domain.ValidationError
		ce *domain.ConflictError
		se *domain.StorageError
	)
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, handler.Envelope{Message: ve.Reason}
	case errors.As(err, &ce):
		return http.StatusBadRequest, handler.Envelope{Message: ce.Reason}
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusBadRequest, handler.Envelope{Message: "User already exists with this email"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, handler.Envelope{Message: "Invalid email or password"}
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, handler.Envelope{Message: "User not found"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, handler.Envelope{Message: "Access forbidden"}
	case errors.As(err, &se) && se.Op == "put":
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("storage failure")
		return http.StatusInternalServerError, handler.Envelope{Message: "Failed to upload file to storage"}
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	msg := "Internal Server Error"
	var oe *handler.OperationError
	if errors.As(err, &oe) && oe.Message != "" {
		msg = oe.Message
	}
	return http.StatusInternalServerError, handler.Envelope{Message: msg}
}
