package llm

import "context"

// #region signatures

// Signature names one of the fixed model contracts. Each signature has a
// statically known input/output shape; there is no dynamic dispatch.
type Signature string

const (
	SigRouter               Signature = "router"
	SigQuerySynthesis       Signature = "query_synthesis"
	SigQueryRefinement      Signature = "query_refinement"
	SigConstraintExtraction Signature = "constraint_extraction"
	SigAnswerSynthesis      Signature = "answer_synthesis"
)

// #endregion

// #region requests

// RouteRequest asks for a path classification of a question.
type RouteRequest struct {
	Question string
}

// RouteReply carries the raw label and the model's reasoning.
type RouteReply struct {
	Reasoning string
	Route     string
}

// QueryRequest asks for a SQL query answering the question.
type QueryRequest struct {
	Question string
	Schema   string
	Context  string // planner constraints or document context, may be empty
}

// QueryReply carries the generated SQL text.
type QueryReply struct {
	SQL string
}

// RefineRequest asks for a corrected version of a failed query.
// ErrorMessage must be the literal error from the most recent attempt.
type RefineRequest struct {
	Question     string
	FailedSQL    string
	ErrorMessage string
	Schema       string
}

// RefineReply carries the corrected SQL text.
type RefineReply struct {
	SQL string
}

// ConstraintRequest asks for structured constraints extractable from
// retrieved document text.
type ConstraintRequest struct {
	Question   string
	DocContext string
}

// ConstraintReply carries constraint lines, one per line, each in
// "kind: value" form.
type ConstraintReply struct {
	Constraints string
}

// AnswerRequest asks for a final answer matching a format hint.
type AnswerRequest struct {
	Question   string
	FormatHint string
	DocContext string
	SQLResult  string
	Feedback   string // validator rejection reason on re-synthesis, else empty
}

// AnswerReply carries the explanation and the raw answer text.
type AnswerReply struct {
	Reasoning string
	Answer    string
}

// #endregion

// #region gateway

// Gateway is the language-model collaborator. One method per signature,
// each with a fixed request/reply shape. Implementations must be safe for
// concurrent use, or be wrapped with Serialized.
type Gateway interface {
	Route(ctx context.Context, req RouteRequest) (RouteReply, error)
	GenerateQuery(ctx context.Context, req QueryRequest) (QueryReply, error)
	RefineQuery(ctx context.Context, req RefineRequest) (RefineReply, error)
	ExtractConstraints(ctx context.Context, req ConstraintRequest) (ConstraintReply, error)
	SynthesizeAnswer(ctx context.Context, req AnswerRequest) (AnswerReply, error)
}

// #endregion

// #region errors

// GatewayError wraps a failure to obtain structured output from the model
// backend. Timeouts are reported as GatewayError like any other failure.
type GatewayError struct {
	Signature Signature
	Err       error
}

func (e *GatewayError) Error() string {
	return "llm gateway (" + string(e.Signature) + "): " + e.Err.Error()
}

func (e *GatewayError) Unwrap() error { return e.Err }

// #endregion
