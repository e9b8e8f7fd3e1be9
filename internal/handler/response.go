package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Envelope is the body of every successful JSON response.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope is the body of every failed response.
type ErrorEnvelope struct {
	Success    bool     `json:"success"`
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors"`
}

func respond(c echo.Context, status int, message string, data any) error {
	return c.JSON(status, Envelope{StatusCode: status, Message: message, Data: data, Success: true})
}

func ok(c echo.Context, message string, data any) error {
	return respond(c, http.StatusOK, message, data)
}
