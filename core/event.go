package core

import (
	"github.com/google/uuid"
)

// EventID names a signal consumed by a process graph to select the next step.
type EventID string

const (
	// EventStartProcess kicks off a process graph from its entry step.
	EventStartProcess EventID = "StartProcess"
	// EventIntroComplete is emitted when the intro step has produced its greeting.
	EventIntroComplete EventID = "IntroComplete"
	// EventUserInputReceived carries a user message into the chat loop.
	EventUserInputReceived EventID = "UserInputReceived"
	// EventAssistantResponseGenerated is emitted once the scheduler produced a reply.
	EventAssistantResponseGenerated EventID = "AssistantResponseGenerated"
	// EventExit ends the session.
	EventExit EventID = "Exit"
)

// Event is a tagged signal with an optional payload (typically user text).
type Event struct {
	ID      EventID `json:"id"`
	Payload string  `json:"payload,omitempty"`
}

// NewID returns a new random identifier.
func NewID() string {
	return uuid.NewString()
}
