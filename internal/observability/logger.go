package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns the process-wide logger: JSON in production, text
// locally. Cache degradation is reported at Warn so it stays visible at the
// default Info level.
func NewLogger(env string) *slog.Logger {
	var handler slog.Handler
	if env == "prod" || env == "production" {
		handler = slog.NewJSONHandler(os.Stdout, nil)
	} else {
		handler = slog.NewTextHandler(os.Stdout, nil)
	}
	return slog.New(handler).With("service", "express-library-api")
}
