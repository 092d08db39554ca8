package process

import "github.com/hupe1980/agentplay/core"

// Built-in graph names.
const (
	ChatGraphName    = "chat"
	ChatBotGraphName = "chatbot"
)

// Step ids and actions used by the built-in graphs.
const (
	StepStart = "start"
	StepIntro = "intro"
	StepChat  = "chat"
	StepEnd   = "end"

	ActionIntro    = "intro"
	ActionRespond  = "respond"
	ActionFarewell = "farewell"
)

func chatSteps() []Step {
	return []Step{
		{
			ID:     StepChat,
			Kind:   LoopUntilEvent,
			Action: ActionRespond,
			Emits:  core.EventAssistantResponseGenerated,
			OnEvent: map[core.EventID]string{
				core.EventUserInputReceived:          StepChat,
				core.EventAssistantResponseGenerated: StepChat,
				core.EventExit:                       StepEnd,
			},
		},
		{ID: StepEnd, Kind: SingleAction, Action: ActionFarewell, Terminal: true},
	}
}

// ChatGraph is the default graph: a single chat loop that ends on Exit.
func ChatGraph() *Graph {
	return mustGraph(NewGraph(ChatGraphName, StepChat, chatSteps()...))
}

// ChatBotGraph starts with an introduction step before entering the chat loop.
func ChatBotGraph() *Graph {
	steps := append([]Step{
		{
			ID:      StepStart,
			Kind:    LoopUntilEvent,
			OnEvent: map[core.EventID]string{core.EventStartProcess: StepIntro},
		},
		{
			ID:      StepIntro,
			Kind:    SingleAction,
			Action:  ActionIntro,
			Emits:   core.EventIntroComplete,
			OnEvent: map[core.EventID]string{core.EventIntroComplete: StepChat},
		},
	}, chatSteps()...)

	return mustGraph(NewGraph(ChatBotGraphName, StepStart, steps...))
}

// Builtin returns the built-in graph called name.
func Builtin(name string) (*Graph, error) {
	switch name {
	case "", ChatGraphName:
		return ChatGraph(), nil
	case ChatBotGraphName:
		return ChatBotGraph(), nil
	}

	return nil, &core.ValidationError{Field: "process", Value: name, Message: "unknown process graph"}
}

func mustGraph(g *Graph, err error) *Graph {
	if err != nil {
		panic(err)
	}

	return g
}
