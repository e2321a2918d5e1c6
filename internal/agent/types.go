package agent

// #region imports
import (
	"time"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/warehouse"
)

// #endregion

// #region format-hint

// FormatHint declares the expected type of a final answer.
type FormatHint string

const (
	FormatInt    FormatHint = "int"
	FormatFloat  FormatHint = "float"
	FormatString FormatHint = "string"
	FormatDict   FormatHint = "dict"
	FormatList   FormatHint = "list"
)

// ParseFormatHint normalizes a raw hint string. Unknown hints fall back to
// string, the least constrained type.
func ParseFormatHint(s string) FormatHint {
	switch FormatHint(s) {
	case FormatInt, FormatFloat, FormatString, FormatDict, FormatList:
		return FormatHint(s)
	}
	if s == "str" {
		return FormatString
	}
	return FormatString
}

// #endregion

// #region question

// Question is one immutable input record.
type Question struct {
	ID         string
	Text       string
	FormatHint FormatHint
}

// #endregion

// #region path

// Path determines which pipeline stages execute.
type Path string

const (
	PathDocument Path = "document"
	PathQuery    Path = "query"
	PathHybrid   Path = "hybrid"
)

// RoutingDecision is produced once per question and never mutated.
type RoutingDecision struct {
	Path Path
}

// #endregion

// #region constraint

// ConstraintKind categorizes an extracted constraint.
type ConstraintKind string

const (
	ConstraintDateRange ConstraintKind = "date_range"
	ConstraintCategory  ConstraintKind = "category"
	ConstraintFormula   ConstraintKind = "formula"
	ConstraintOther     ConstraintKind = "other"
)

// Constraint is advisory context derived from retrieved chunks. Downstream
// steps may ignore constraints they cannot use.
type Constraint struct {
	Kind  ConstraintKind
	Value string
}

// #endregion

// #region query-attempt

// MaxRepairs bounds the repair loop: at most 2 refinements, 3 attempts total.
const MaxRepairs = 2

// QueryAttempt records one execution attempt. Err is the literal engine
// message; empty Err means the attempt succeeded.
type QueryAttempt struct {
	QueryText    string
	AttemptIndex int
	Rows         warehouse.Rows
	Err          string
}

// Failed reports whether this attempt carried an execution error.
func (a QueryAttempt) Failed() bool {
	return a.Err != ""
}

// #endregion

// #region trace

// TraceEvent is one append-only entry in the per-question trace log.
type TraceEvent struct {
	Step string
	Note string
	At   time.Time
}

// #endregion

// #region state

// State is the mutable working record for one question. The Orchestrator
// owns it exclusively; components receive read views and return values the
// Orchestrator applies. Discarded after the OutputRecord is emitted.
type State struct {
	Question    Question
	Route       RoutingDecision
	Chunks      []retrieval.Chunk
	Constraints []Constraint
	Attempts    []QueryAttempt
	Answer      any
	Explanation string
	Citations   []string
	Trace       []TraceEvent

	// Terminal facts the confidence formula reads.
	Repairs          int  // Refining transitions taken (0..MaxRepairs)
	RepairsExhausted bool // query path needed but never succeeded
	FallbackUsed     bool // coercion failed twice, typed zero substituted
	DoubleRejected   bool // validator rejected the re-synthesized answer too
}

// FinalSQL returns the last attempted query text, or "" when the query path
// was unused.
func (s *State) FinalSQL() string {
	if len(s.Attempts) == 0 {
		return ""
	}
	return s.Attempts[len(s.Attempts)-1].QueryText
}

// ExecutionSucceeded reports whether any attempt returned rows without error.
func (s *State) ExecutionSucceeded() bool {
	for _, a := range s.Attempts {
		if !a.Failed() {
			return true
		}
	}
	return false
}

// UsedChunks returns the retrieved chunks that count as used: positive
// score, retrieval order preserved.
func (s *State) UsedChunks() []retrieval.Chunk {
	var used []retrieval.Chunk
	for _, c := range s.Chunks {
		if c.Score > 0 {
			used = append(used, c)
		}
	}
	return used
}

func (s *State) addTrace(step, note string) {
	s.Trace = append(s.Trace, TraceEvent{Step: step, Note: note, At: time.Now().UTC()})
}

// #endregion

// #region output-record

// OutputRecord is the terminal, immutable result for one question.
type OutputRecord struct {
	ID          string   `json:"id"`
	FinalAnswer any      `json:"final_answer"`
	SQL         string   `json:"sql"`
	Confidence  float64  `json:"confidence"`
	Explanation string   `json:"explanation"`
	Citations   []string `json:"citations"`
}

// MinimalRecord is the isolated result for a question whose pipeline failed
// hard (router collaborator unreachable). The batch continues regardless.
func MinimalRecord(id, reason string) OutputRecord {
	return OutputRecord{
		ID:          id,
		FinalAnswer: nil,
		SQL:         "",
		Confidence:  0,
		Explanation: reason,
		Citations:   []string{},
	}
}

// #endregion
