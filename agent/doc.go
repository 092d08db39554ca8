// Package agent schedules agent turns for a session.
//
// Two schedulers share the TurnRunner abstraction (normally a *flow.Flow):
//
//  1. Single: one agent answers each request
//  2. Team: a fixed roster takes turns in round-robin order until an agent
//     emits the termination marker or max iterations are reached
//
// Roster order is fixed at construction and never changes, so the same
// roster and inputs always produce the same turn sequence.
package agent
