// Package filter implements the interception layer that runs around every
// tool invocation and every agent output.
//
// A Pipeline is an ordered chain of Filters: each filter receives the content
// produced by the one before it, and the chain stops at the first block. Every
// execution yields a core.FilterDecision that is attached to the governed
// ToolCall or Turn, so the trace always explains what happened to a piece of
// content.
//
// Two filters ship with the package:
//
//   - PIIFilter ("pii_detection") redacts credit cards, emails, phone numbers
//     and government IDs, either advisory (modify) or blocking.
//   - LoggingFilter ("invocation_logging") records one immutable, sequenced
//     line per observation in an AuditLog, optionally mirrored as JSON Lines.
package filter
