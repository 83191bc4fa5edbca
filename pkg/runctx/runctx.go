// Package runctx carries run identifiers and timing through contexts.
package runctx

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Context keys for run tracing.
// Using unexported struct pointers prevents key collisions.
var (
	processIDKey = &struct{}{}
	stepIDKey    = &struct{}{}
	operationKey = &struct{}{}
	startTimeKey = &struct{}{}
)

// WithProcessID adds a process id to the context
func WithProcessID(parent context.Context, processID string) context.Context {
	if processID == "" {
		processID = GenerateProcessID()
	}
	return context.WithValue(parent, processIDKey, processID)
}

// GetProcessID retrieves the process id from context
func GetProcessID(ctx context.Context) string {
	if id, ok := ctx.Value(processIDKey).(string); ok && id != "" {
		return id
	}
	return "unknown-process"
}

// WithStepID adds a step id to the context
func WithStepID(parent context.Context, stepID int) context.Context {
	return context.WithValue(parent, stepIDKey, stepID)
}

// GetStepID retrieves the step id from context; -1 when absent
func GetStepID(ctx context.Context) int {
	if id, ok := ctx.Value(stepIDKey).(int); ok {
		return id
	}
	return -1
}

// WithOperation adds an operation name to the context
func WithOperation(parent context.Context, operation string) context.Context {
	return context.WithValue(parent, operationKey, operation)
}

// GetOperation retrieves the operation name from context
func GetOperation(ctx context.Context) string {
	if op, ok := ctx.Value(operationKey).(string); ok && op != "" {
		return op
	}
	return "unknown-operation"
}

// WithStartTime adds the operation start time to the context
func WithStartTime(parent context.Context, startTime time.Time) context.Context {
	return context.WithValue(parent, startTimeKey, startTime)
}

// GetStartTime retrieves the operation start time from context
func GetStartTime(ctx context.Context) time.Time {
	if t, ok := ctx.Value(startTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

// GetDuration calculates the duration since the start time in context
func GetDuration(ctx context.Context) time.Duration {
	startTime := GetStartTime(ctx)
	return time.Since(startTime)
}

// GenerateProcessID creates a new short process id (12 lowercase hex chars)
func GenerateProcessID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// GenerateRequestID creates a new unique request id for CLI invocations
func GenerateRequestID() string {
	return "req_" + uuid.New().String()
}

// EnrichContext stamps a context with a process id and start time
func EnrichContext(parent context.Context) context.Context {
	ctx := parent

	if GetProcessID(ctx) == "unknown-process" {
		ctx = WithProcessID(ctx, GenerateProcessID())
	}

	ctx = WithStartTime(ctx, time.Now())

	return ctx
}

// TracingFields returns common tracing fields for structured logging
func TracingFields(ctx context.Context) map[string]interface{} {
	return map[string]interface{}{
		"process_id":  GetProcessID(ctx),
		"step_id":     GetStepID(ctx),
		"operation":   GetOperation(ctx),
		"duration_ms": GetDuration(ctx).Milliseconds(),
	}
}
