// Package logging configures the slog loggers used across loopforge.
//
// It provides a console handler for interactive use, a JSON handler for
// machine-readable output, attribute helpers shared by every component,
// and a sampler that keeps encoder progress from flooding the log.
package logging
