package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_DoesNotPanicOnEveryLevel(t *testing.T) {
	lg := New("test")
	lg.Debug("debug message", "k", "v")
	lg.Info("info message", "k", 1)
	lg.Warn("warn message")
	lg.Error("error message", "err", "boom")
}

func TestLogger_WithAndNamed_ReturnIndependentLoggers(t *testing.T) {
	lg := New("test")
	child := lg.With("component", "engine")
	named := lg.Named("sub")

	assert.NotNil(t, child)
	assert.NotNil(t, named)
	// Logging through the derived loggers must not panic and must not affect
	// the parent's identity.
	child.Info("child log")
	named.Info("named log")
}

func TestWithContext_FromContext_RoundTrip(t *testing.T) {
	lg := New("test")
	ctx := WithContext(context.Background(), lg)

	got := FromContext(ctx)
	assert.Equal(t, lg, got)
}

func TestFromContext_FallsBackToNoop(t *testing.T) {
	got := FromContext(context.Background())
	assert.NotNil(t, got)
	// Must be safe to call without a logger ever having been attached.
	got.Info("no one is listening")
}
