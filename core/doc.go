// Package core provides the foundational domain types and interfaces used by
// agentplay. It defines:
//
//   - Turns and ToolCalls (the immutable trace of a conversation)
//   - FilterDecisions (the audit record of every interception)
//   - Conversation and Tx (append-only session state with staged commits)
//   - Events (process graph signals)
//   - The error taxonomy and the retry helper for external capabilities
//   - Pluggable MemoryStore and Archive interfaces
//
// Implementation concerns (model providers, scheduling, persistence) live in
// sibling packages that depend on the small interfaces declared here.
package core
