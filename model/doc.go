// Package model defines the provider-agnostic abstractions for interacting
// with language models inside agentplay.
//
// Core goals:
//   - Unify streaming and non-streaming generation behind a single interface
//   - Normalize tool / function call representation (ToolDefinition, ToolCall)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate deterministic testing (ScriptedModel, MockModel)
//
// Providers (model/openai, model/anthropic) implement the Model interface so
// the scheduler remains decoupled from vendor SDKs.
package model
