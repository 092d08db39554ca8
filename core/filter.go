package core

import "slices"

// FilterPhase says whether a filter ran before or after the guarded action.
type FilterPhase string

const (
	PhasePre  FilterPhase = "pre"
	PhasePost FilterPhase = "post"
)

// FilterTarget names what a filter inspected.
type FilterTarget string

const (
	TargetTool        FilterTarget = "tool"
	TargetAgentOutput FilterTarget = "agent_output"
	TargetUserInput   FilterTarget = "user_input"
)

// Verdict is the outcome of a single filter.
type Verdict string

const (
	VerdictAllow  Verdict = "allow"
	VerdictModify Verdict = "modify"
	VerdictBlock  Verdict = "block"
)

// Span is a half-open byte range [Start, End) into the content a filter received.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Redaction describes one replaced match. The matched text itself is never retained.
type Redaction struct {
	Kind        string `json:"kind"`
	Span        Span   `json:"span"`
	Replacement string `json:"replacement"`
}

// FilterDecision is the audit record of one filter execution.
type FilterDecision struct {
	Filter     string       `json:"filter_name"`
	Phase      FilterPhase  `json:"phase"`
	Target     FilterTarget `json:"target"`
	Verdict    Verdict      `json:"verdict"`
	Redactions []Redaction  `json:"redactions,omitempty"`
	Reason     string       `json:"reason,omitempty"`
}

func cloneDecisions(in []FilterDecision) []FilterDecision {
	if in == nil {
		return nil
	}

	out := make([]FilterDecision, len(in))
	for i, d := range in {
		d.Redactions = slices.Clone(d.Redactions)
		out[i] = d
	}

	return out
}
