package agent

// #region router-failure

// RouterFailure marks the classification collaborator as unreachable.
// Fatal for the affected question only; the batch emits a minimal record
// and moves on.
type RouterFailure struct {
	Err error
}

func (e *RouterFailure) Error() string {
	return "router failure: " + e.Err.Error()
}

func (e *RouterFailure) Unwrap() error { return e.Err }

// #endregion

// #region synthesis-error

// SynthesisError reports that the synthesized answer could not be coerced
// to the declared format hint. One retry is allowed before the typed
// zero-value fallback is substituted.
type SynthesisError struct {
	Reason string
}

func (e *SynthesisError) Error() string {
	return "synthesis error: " + e.Reason
}

// #endregion
