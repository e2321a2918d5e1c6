package agent

import "testing"

func walk(t *testing.T, m *Machine, phases ...Phase) {
	t.Helper()
	for _, p := range phases {
		if err := m.To(p); err != nil {
			t.Fatalf("transition to %s: %v", p, err)
		}
	}
}

func TestMachine_FullRepairPath(t *testing.T) {
	m := NewMachine()
	walk(t, m,
		PhaseRetrieved, PhasePlanned, PhaseQuerySynthesized,
		PhaseExecuting, PhaseExecutionFailed, PhaseRefining,
		PhaseExecuting, PhaseExecutionSucceeded,
		PhaseSynthesizing, PhaseValidating, PhaseFinalized,
	)
	if !m.Terminal() {
		t.Error("machine should be terminal after Finalized")
	}
}

func TestMachine_QueryPathSkipsRetrieval(t *testing.T) {
	m := NewMachine()
	walk(t, m, PhaseQuerySynthesized, PhaseExecuting, PhaseExecutionSucceeded,
		PhaseSynthesizing, PhaseValidating, PhaseFinalized)
}

func TestMachine_DocumentPathSkipsQuery(t *testing.T) {
	m := NewMachine()
	walk(t, m, PhaseRetrieved, PhasePlanned, PhaseSynthesizing,
		PhaseValidating, PhaseFinalized)
}

func TestMachine_ValidationRetryLoop(t *testing.T) {
	m := NewMachine()
	walk(t, m, PhaseRetrieved, PhasePlanned, PhaseSynthesizing,
		PhaseValidating, PhaseValidationFailed, PhaseReSynthesizing,
		PhaseValidating, PhaseValidationFailed, PhaseFinalized)
}

func TestMachine_RejectsIllegalEdge(t *testing.T) {
	m := NewMachine()
	if err := m.To(PhaseExecuting); err == nil {
		t.Error("Routed -> Executing must be rejected")
	}
	if m.Phase() != PhaseRouted {
		t.Errorf("phase moved to %s on a rejected transition", m.Phase())
	}
}

func TestMachine_FinalizedIsTerminal(t *testing.T) {
	m := NewMachine()
	walk(t, m, PhaseQuerySynthesized, PhaseExecuting, PhaseExecutionSucceeded,
		PhaseSynthesizing, PhaseValidating, PhaseFinalized)
	if err := m.To(PhaseSynthesizing); err == nil {
		t.Error("no edges may leave Finalized")
	}
}
