// Package logging provides the minimal logging interface used throughout
// agentplay together with slog based adapters.
//
// The Logger interface defines the standard levelled methods (Debug, Info,
// Warn, Error) taking a message and alternating key/value pairs. This package
// includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation (tests, minimal setups)
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "json"})
//	play := agentplay.New(agentplay.WithLogger(logger))
package logging
