package testutil

import (
	"bytes"
	"io"
	"log/slog"

	"github.com/dtroode/socialhub/internal/logger"
)

func MakeNoopLogger() *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))}
}

// MakeBufferLogger returns a logger writing every level into buf.
func MakeBufferLogger(buf *bytes.Buffer) *logger.Logger {
	return &logger.Logger{Logger: slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))}
}
