// Package log configures the process-wide slog handler and hands out module-scoped loggers.
package log

import (
	"log/slog"
	"os"
)

func ParseLevel(logLevel string) slog.Level {
	switch logLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func Setup(logLevel string) {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: ParseLevel(logLevel),
	})))
}

func WithModule(module string) *slog.Logger {
	return slog.With("module", module)
}

// MaskSecret keeps the first 8 and last 4 characters of a credential.
func MaskSecret(secret string) string {
	if len(secret) <= 12 {
		return "***"
	}

	return secret[:8] + "..." + secret[len(secret)-4:]
}
