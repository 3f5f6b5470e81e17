package apperror

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// Error is an HTTP-facing application error. Message is what the caller
// sees; Err keeps the detailed cause for the server log.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"error"`
	Details any    `json:"details,omitempty"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func New(code int, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func (e *Error) WithDetails(details any) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func BadRequest(message string, err error) *Error {
	return New(http.StatusBadRequest, message, err)
}

func Unauthorized(message string, err error) *Error {
	return New(http.StatusUnauthorized, message, err)
}

func NotFound(message string, err error) *Error {
	return New(http.StatusNotFound, message, err)
}

func Internal(err error) *Error {
	return New(http.StatusInternalServerError, "Internal server error", err)
}

// Handler renders every error returned from an echo handler as JSON.
// Unknown errors become a generic 500 and are logged with their cause.
func Handler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var appErr *Error
		var httpErr *echo.HTTPError
		switch {
		case errors.As(err, &appErr):
		case errors.As(err, &httpErr):
			appErr = New(httpErr.Code, http.StatusText(httpErr.Code), httpErr.Internal)
			if msg, ok := httpErr.Message.(string); ok {
				appErr.Message = msg
			}
		default:
			appErr = Internal(err)
		}

		if appErr.Code >= http.StatusInternalServerError {
			log.Error("Request failed",
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", appErr.Code),
				zap.Error(err),
			)
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(appErr.Code)
			return
		}
		_ = c.JSON(appErr.Code, appErr)
	}
}
