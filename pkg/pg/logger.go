package pg

import "context"

// logger is the slice of slog's surface that migration logging needs. Taking
// an interface keeps the package usable with any structured logger.
type logger interface {
	InfoContext(ctx context.Context, msg string, args ...any)
	ErrorContext(ctx context.Context, msg string, args ...any)
}
