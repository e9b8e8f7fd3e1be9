package handler

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/cinevault/internal/apperr"
)

// ErrorHandler is installed as echo's HTTPErrorHandler. It is the only
// place errors become HTTP responses: *apperr.Error values keep their kind
// and message, *echo.HTTPError values (unknown route, body too large, rate
// limited) keep their status, and anything else is a 500 whose cause is
// logged but never sent.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	log = log.Named("errors")
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		env := ErrorEnvelope{Errors: []string{}}
		var he *echo.HTTPError
		if errors.As(err, &he) && !isAppErr(err) {
			env.StatusCode = he.Code
			env.Message = httpErrorMessage(he)
		} else {
			ae := apperr.From(err)
			env.StatusCode = ae.Status()
			env.Message = ae.Message
			if len(ae.Errors) > 0 {
				env.Errors = ae.Errors
			}
		}

		if env.StatusCode >= http.StatusInternalServerError {
			log.Error("request failed",
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Int("status", env.StatusCode),
				zap.Error(err),
			)
		}

		var werr error
		if c.Request().Method == http.MethodHead {
			werr = c.NoContent(env.StatusCode)
		} else {
			werr = c.JSON(env.StatusCode, env)
		}
		if werr != nil {
			log.Warn("write error response", zap.Error(werr))
		}
	}
}

func isAppErr(err error) bool {
	var ae *apperr.Error
	return errors.As(err, &ae)
}

func httpErrorMessage(he *echo.HTTPError) string {
	switch m := he.Message.(type) {
	case string:
		return m
	case error:
		return m.Error()
	case nil:
		return http.StatusText(he.Code)
	default:
		return fmt.Sprint(m)
	}
}
