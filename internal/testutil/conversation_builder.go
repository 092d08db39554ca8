package testutil

import (
	"github.com/hupe1980/agentplay/core"
)

// ConversationBuilder helps construct conversations for tests.
// Example:
//
//	conv := NewConversationBuilder("chat").User("hi").Agent("Assistant", "hello").Build()
type ConversationBuilder struct {
	step  string
	turns []core.Turn
}

// NewConversationBuilder creates a builder for a conversation positioned at step.
func NewConversationBuilder(step string) *ConversationBuilder {
	return &ConversationBuilder{step: step}
}

// User appends a user turn (chainable).
func (b *ConversationBuilder) User(text string) *ConversationBuilder {
	return b.Turn(NewTurnBuilder().User().Text(text).Build())
}

// Agent appends an agent turn (chainable).
func (b *ConversationBuilder) Agent(name, text string) *ConversationBuilder {
	return b.Turn(NewTurnBuilder().Agent(name).Text(text).Build())
}

// Turn appends an arbitrary turn (chainable).
func (b *ConversationBuilder) Turn(t core.Turn) *ConversationBuilder {
	b.turns = append(b.turns, t)
	return b
}

// Turns appends several turns (chainable).
func (b *ConversationBuilder) Turns(ts ...core.Turn) *ConversationBuilder {
	b.turns = append(b.turns, ts...)
	return b
}

// Build returns a conversation holding the appended turns with indices
// assigned in order.
func (b *ConversationBuilder) Build() *core.Conversation {
	c := core.NewConversation(b.step)
	for _, t := range b.turns {
		c.Append(t)
	}

	return c
}
