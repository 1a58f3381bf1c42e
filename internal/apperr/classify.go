package apperr

import (
	"errors"
	"fmt"

	"github.com/dtroode/socialhub/internal/logger"
)

// DevelopmentMode is the execution mode in which stack traces reach clients.
const DevelopmentMode = "development"

// Body is the JSON payload of every error response.
type Body struct {
	Success bool   `json:"success"`
	Error   Detail `json:"error"`
}

// Detail carries the public message and, in development mode only, the stack.
type Detail struct {
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

// Classifier maps errors to HTTP responses.
type Classifier struct {
	mode   string
	logger *logger.Logger
}

// NewClassifier creates a Classifier for the given execution mode.
func NewClassifier(mode string, logger *logger.Logger) *Classifier {
	return &Classifier{mode: mode, logger: logger}
}

// Classify logs err and returns the status code and body to send.
func (c *Classifier) Classify(err error) (int, Body) {
	var appErr *Error
	errors.As(err, &appErr)

	kind := KindOf(err)
	status := kind.Status()

	own := err.Error()
	if appErr != nil {
		own = appErr.Message
	}

	c.logger.Error("request failed",
		"kind", kind.String(),
		"status", status,
		"error", err.Error())

	body := Body{
		Success: false,
		Error:   Detail{Message: kind.PublicMessage(own)},
	}
	if c.mode == DevelopmentMode {
		body.Error.Stack = stackOf(err, appErr)
	}

	return status, body
}

func stackOf(err error, appErr *Error) string {
	if appErr != nil {
		if st := appErr.StackTrace(); st != "" {
			if appErr.Cause != nil {
				return fmt.Sprintf("%s\ncaused by: %+v", st, appErr.Cause)
			}
			return st
		}
	}
	if st := fmt.Sprintf("%+v", err); st != "" {
		return st
	}
	return KindInternal.String()
}
