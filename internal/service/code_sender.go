package service

import (
	"context"

	"github.com/dtroode/socialhub/internal/logger"
)

// LogCodeSender "delivers" verification codes by writing them to the log.
// It stands in for a mailer in development setups.
type LogCodeSender struct {
	logger *logger.Logger
}

func NewLogCodeSender(logger *logger.Logger) *LogCodeSender {
	return &LogCodeSender{logger: logger}
}

func (s *LogCodeSender) SendCode(_ context.Context, email, code string) error {
	s.logger.Info("Verification code",
		"email", email,
		"code", code)
	return nil
}
