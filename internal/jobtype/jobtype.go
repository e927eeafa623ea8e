// Package jobtype tags a context with the kind of work that triggered a
// generation call.
//
// The tag labels LLM metrics and generation audit entries, so chat traffic can
// be told apart from tool runs and operator commands.
//
// Usage:
//
//	ctx = jobtype.WithJobType(ctx, jobtype.Tool)
//	jt := jobtype.FromContext(ctx) // Chat if not set
package jobtype

import "context"

// JobType classifies a generation request.
type JobType string

const (
	// Chat is a streamed reader or persona conversation turn.
	// This is the default when no job type is explicitly set.
	Chat JobType = "chat"

	// Tool is a writer, simplify, translate, extract or reference run.
	Tool JobType = "tool"

	// Synthesis is a cross-text synthesis over search results.
	Synthesis JobType = "synthesis"

	// CLI is a generation started from shastractl.
	CLI JobType = "cli"
)

// String returns the string representation of the job type.
func (jt JobType) String() string {
	return string(jt)
}

// contextKey is an unexported type for context keys to prevent collisions.
type contextKey struct{}

// WithJobType returns a new context with the specified job type.
func WithJobType(ctx context.Context, jt JobType) context.Context {
	return context.WithValue(ctx, contextKey{}, jt)
}

// FromContext extracts the job type from context.
// Returns Chat if no job type is set.
func FromContext(ctx context.Context) JobType {
	if jt, ok := ctx.Value(contextKey{}).(JobType); ok {
		return jt
	}
	return Chat
}
