package middleware

import (
	"errors"
	"net/http"
	"qittMarket/pkg/logger"

	"github.com/labstack/echo/v4"
)

// ErrorHandler renders errors that escape handlers as JSON.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	code := http.StatusInternalServerError
	message := http.StatusText(code)

	var he *echo.HTTPError
	if errors.As(err, &he) {
		code = he.Code
		if m, ok := he.Message.(string); ok {
			message = m
		} else {
			message = http.StatusText(code)
		}
	} else {
		logger.Error("Unhandled error", err)
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(code)
	} else {
		err = c.JSON(code, errorBody{Code: http.StatusText(code), Message: message})
	}
	if err != nil {
		logger.Error("Failed to write error response", err)
	}
}
