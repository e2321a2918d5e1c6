package agent

import "fmt"

// #region phases

// Phase names one state of the per-question pipeline machine.
type Phase string

const (
	PhaseRouted             Phase = "Routed"
	PhaseRetrieved          Phase = "Retrieved"
	PhasePlanned            Phase = "Planned"
	PhaseQuerySynthesized   Phase = "QuerySynthesized"
	PhaseExecuting          Phase = "Executing"
	PhaseExecutionFailed    Phase = "ExecutionFailed"
	PhaseRefining           Phase = "Refining"
	PhaseExecutionSucceeded Phase = "ExecutionSucceeded"
	PhaseSynthesizing       Phase = "Synthesizing"
	PhaseValidating         Phase = "Validating"
	PhaseValidationFailed   Phase = "ValidationFailed"
	PhaseReSynthesizing     Phase = "ReSynthesizing"
	PhaseFinalized          Phase = "Finalized"
)

// #endregion

// #region transitions

// transitions encodes every legal edge of the pipeline machine. The skip
// edges (Routed→QuerySynthesized for query-only, Planned→Synthesizing for
// document-only) are part of the table, so illegal paths fail loudly in
// tests rather than silently mis-sequencing steps.
var transitions = map[Phase][]Phase{
	PhaseRouted:             {PhaseRetrieved, PhaseQuerySynthesized, PhaseSynthesizing},
	PhaseRetrieved:          {PhasePlanned},
	PhasePlanned:            {PhaseQuerySynthesized, PhaseSynthesizing},
	PhaseQuerySynthesized:   {PhaseExecuting, PhaseSynthesizing},
	PhaseExecuting:          {PhaseExecutionFailed, PhaseExecutionSucceeded},
	PhaseExecutionFailed:    {PhaseRefining, PhaseSynthesizing},
	PhaseRefining:           {PhaseExecuting, PhaseSynthesizing},
	PhaseExecutionSucceeded: {PhaseSynthesizing},
	PhaseSynthesizing:       {PhaseValidating},
	PhaseValidating:         {PhaseValidationFailed, PhaseFinalized},
	PhaseValidationFailed:   {PhaseReSynthesizing, PhaseFinalized},
	PhaseReSynthesizing:     {PhaseValidating},
	PhaseFinalized:          nil,
}

// #endregion

// #region machine

// Machine tracks the current phase and rejects illegal transitions.
type Machine struct {
	phase Phase
}

// NewMachine starts a pipeline machine in the initial Routed state.
func NewMachine() *Machine {
	return &Machine{phase: PhaseRouted}
}

// Phase returns the current phase.
func (m *Machine) Phase() Phase {
	return m.phase
}

// To advances the machine to the next phase, or errors when no edge exists.
func (m *Machine) To(next Phase) error {
	for _, allowed := range transitions[m.phase] {
		if allowed == next {
			m.phase = next
			return nil
		}
	}
	return fmt.Errorf("illegal transition %s -> %s", m.phase, next)
}

// Terminal reports whether the machine reached Finalized.
func (m *Machine) Terminal() bool {
	return m.phase == PhaseFinalized
}

// #endregion
