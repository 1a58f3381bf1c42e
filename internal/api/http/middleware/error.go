package middleware

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dtroode/socialhub/internal/apperr"
	"github.com/dtroode/socialhub/internal/logger"
)

// ErrorRecorder counts classified errors.
type ErrorRecorder interface {
	RecordError(kind string)
}

// NewErrorHandler returns the echo.HTTPErrorHandler that renders every
// handler error through the classifier.
func NewErrorHandler(classifier *apperr.Classifier, recorder ErrorRecorder, logger *logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			err = fromHTTPError(httpErr)
		}

		status, body := classifier.Classify(err)
		recorder.RecordError(apperr.KindOf(err).String())

		var writeErr error
		if c.Request().Method == http.MethodHead {
			writeErr = c.NoContent(status)
		} else {
			writeErr = c.JSON(status, body)
		}
		if writeErr != nil {
			logger.Error("failed to write error response",
				"error", writeErr.Error())
		}
	}
}

func fromHTTPError(httpErr *echo.HTTPError) error {
	message := http.StatusText(httpErr.Code)
	switch m := httpErr.Message.(type) {
	case string:
		message = m
	case nil:
	default:
		message = fmt.Sprint(m)
	}

	appErr := apperr.FromStatus(httpErr.Code, message)
	if httpErr.Internal != nil {
		appErr = appErr.WithCause(httpErr.Internal)
	}
	return appErr
}
