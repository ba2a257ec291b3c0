package infrastructure

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

type contextKey string

const (
	// RunIDContextKey carries the id of the current pipeline run
	RunIDContextKey contextKey = "run_id"
	// StageContextKey carries the pipeline step being executed
	StageContextKey contextKey = "stage"
)

// GenerateRunID returns a new UUID v4 run id
func GenerateRunID() string {
	return uuid.New().String()
}

func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, RunIDContextKey, runID)
}

func GetRunID(ctx context.Context) string {
	runID, _ := ctx.Value(RunIDContextKey).(string)
	return runID
}

// EnsureRunID returns ctx with a run id, generating one if it has none
func EnsureRunID(ctx context.Context) context.Context {
	if GetRunID(ctx) == "" {
		return WithRunID(ctx, GenerateRunID())
	}
	return ctx
}

// WithStage marks ctx as running the named pipeline step
func WithStage(ctx context.Context, stage string) context.Context {
	return context.WithValue(ctx, StageContextKey, stage)
}

func GetStage(ctx context.Context) string {
	stage, _ := ctx.Value(StageContextKey).(string)
	return stage
}

// WithComponent creates a logger with a component field
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(slog.String("component", component))
}
