package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every API response.
type Envelope struct {
	Success      bool   `json:"success"`
	Message      string `json:"message,omitempty"`
	Data         any    `json:"data,omitempty"`
	Count        *int   `json:"count,omitempty"`
	Error        string `json:"error,omitempty"`
	RequestedURL string `json:"requestedUrl,omitempty"`
}

// OperationError names the operation that failed unexpectedly. The message is
// what clients see when the cause maps to no known error.
type OperationError struct {
	Message string
	Err     error
}

func (e *OperationError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *OperationError) Unwrap() error { return e.Err }

func failed(message string, err error) error {
	return &OperationError{Message: message, Err: err}
}

func ok(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{Success: true, Message: message, Data: data})
}

func okList(c echo.Context, data any, count int) error {
	return c.JSON(http.StatusOK, Envelope{Success: true, Data: data, Count: &count})
}
