// Package logging provides the structured logger used across the daemon.
//
// It wraps log/slog with a JSON or text handler, a configurable level, and
// default service/version attributes. A *Logger satisfies the small Logger
// interfaces declared by the other packages.
package logging
