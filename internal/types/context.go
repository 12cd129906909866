package types

import "context"

type contextKey string

const (
	// JobIDKey is the context key for the mux job id.
	JobIDKey contextKey = "jobID"
)

// WithJobID returns a new context with the job id added.
func WithJobID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, JobIDKey, id)
}

// JobIDFromContext returns the job id from the context.
func JobIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(JobIDKey).(string)
	return id, ok
}
