package billing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildLogger(t *testing.T) {
	ctx := context.Background()

	t.Run("development enables debug logging", func(t *testing.T) {
		log := buildLogger(Config{ServiceName: "billing", Environment: "development"})
		assert.True(t, log.Enabled(ctx, slog.LevelDebug))
	})

	t.Run("production stays at info", func(t *testing.T) {
		log := buildLogger(Config{ServiceName: "billing", Environment: "production"})
		assert.False(t, log.Enabled(ctx, slog.LevelDebug))
		assert.True(t, log.Enabled(ctx, slog.LevelInfo))
	})
}
