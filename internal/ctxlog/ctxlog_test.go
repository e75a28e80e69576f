package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext_FallsBackToDefault(t *testing.T) {
	require.Same(t, slog.Default(), FromContext(context.Background()))
}

func TestWith_AddsAttributes(t *testing.T) {
	// --- Arrange ---
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := WithLogger(context.Background(), logger)

	// --- Act ---
	ctx = With(ctx, "function", "linear")
	FromContext(ctx).Info("created")

	// --- Assert ---
	assert.Contains(t, buf.String(), "function=linear")
	assert.Contains(t, buf.String(), "msg=created")
}
