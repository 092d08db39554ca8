package core

// Agent is a named persona with fixed instructions participating in a
// session. Color and Icon are presentation hints and carry no behaviour.
type Agent struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
	Color        string `json:"color,omitempty"`
	Icon         string `json:"icon,omitempty"`
}

// DefaultInstructions is the system prompt used when an agent has none.
const DefaultInstructions = "You are a helpful assistant that provides concise and accurate information."

// OrchestratorSpeaker is the speaker of turns synthesized by the scheduler itself.
const OrchestratorSpeaker = "orchestrator"

// UserSpeaker is the speaker of user turns.
const UserSpeaker = "user"
