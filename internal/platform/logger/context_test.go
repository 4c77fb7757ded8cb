package logger_test

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/revisely/scheduler/internal/platform/logger"
	"github.com/stretchr/testify/assert"
)

func TestFromContextReturnsAttachedLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	attached := slog.New(slog.NewJSONHandler(&buf, nil))

	ctx := logger.WithLogger(context.Background(), attached)
	assert.Same(t, attached, logger.FromContext(ctx))
}

func TestFromContextFallsBackToDefault(t *testing.T) {
	t.Parallel()

	got := logger.FromContext(context.Background())
	assert.NotNil(t, got)
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	fallback := slog.New(slog.NewJSONHandler(&buf, nil))

	// No logger attached: the component fallback wins.
	got := logger.FromContextOrDefault(context.Background(), fallback)
	assert.Same(t, fallback, got)

	// Attached logger takes precedence over the fallback.
	attached := slog.New(slog.NewJSONHandler(&buf, nil))
	ctx := logger.WithLogger(context.Background(), attached)
	assert.Same(t, attached, logger.FromContextOrDefault(ctx, fallback))

	// Nothing anywhere: never nil.
	assert.NotNil(t, logger.FromContextOrDefault(context.Background(), nil))
}
