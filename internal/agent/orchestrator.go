package agent

// #region imports
import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/warehouse"
)

// #endregion

// #region interfaces

// Router classifies a question into a processing path.
type Router interface {
	Classify(ctx context.Context, q Question) (RoutingDecision, error)
}

// Retriever answers lexical searches over the document corpus.
type Retriever interface {
	Search(ctx context.Context, text string, k int) ([]retrieval.Chunk, error)
}

// Planner extracts advisory constraints from retrieved chunks. It never
// fails hard; unusable context yields an empty slice.
type Planner interface {
	Plan(ctx context.Context, q Question, chunks []retrieval.Chunk) []Constraint
}

// QuerySource produces and repairs SQL query text. Both methods are pure
// functions of their inputs from the orchestrator's perspective.
type QuerySource interface {
	Synthesize(ctx context.Context, q Question, schema string, cons []Constraint) (string, error)
	Refine(ctx context.Context, q Question, failedSQL, errMsg, schema string) (string, error)
}

// Executor runs queries against the warehouse. Errors drive the repair
// loop; the orchestrator never inspects their content.
type Executor interface {
	Execute(ctx context.Context, query string) (warehouse.Rows, error)
	ReferencedTables(query string) []string
}

// SynthesisRequest is the read view handed to the answer synthesizer.
type SynthesisRequest struct {
	Question Question
	Chunks   []retrieval.Chunk // used chunks, retrieval order
	Result   *warehouse.Rows   // nil unless query execution succeeded
	Tables   []string          // tables referenced by the successful query
	Feedback string            // validator rejection reason on re-synthesis
}

// SynthesisResult is the synthesizer's delta: typed value, explanation,
// and deterministic citations.
type SynthesisResult struct {
	Value       any
	Explanation string
	Citations   []string
}

// Synthesizer combines evidence into a typed answer.
type Synthesizer interface {
	Synthesize(ctx context.Context, req SynthesisRequest) (SynthesisResult, error)
}

// #endregion

// #region orchestrator

// Deps bundles the pipeline components the orchestrator drives. No
// component calls another; data flows through the orchestrator only.
type Deps struct {
	Router    Router
	Retriever Retriever
	Planner   Planner
	Queries   QuerySource
	Executor  Executor
	Synth     Synthesizer
}

// Config holds per-question pipeline settings.
type Config struct {
	Schema      string        // compact warehouse schema for prompts
	TopK        int           // chunks per retrieval
	StepTimeout time.Duration // per-collaborator-call timeout
}

// DefaultConfig returns pipeline defaults; Schema must still be set.
func DefaultConfig() Config {
	return Config{
		TopK:        3,
		StepTimeout: 60 * time.Second,
	}
}

// Orchestrator drives the per-question state machine: routing, retrieval,
// planning, the bounded query repair loop, synthesis, validation, and
// confidence scoring.
type Orchestrator struct {
	deps Deps
	cfg  Config
}

// New wires an orchestrator from components and config.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.TopK <= 0 {
		cfg.TopK = 3
	}
	if cfg.StepTimeout <= 0 {
		cfg.StepTimeout = 60 * time.Second
	}
	return &Orchestrator{deps: deps, cfg: cfg}
}

// #endregion

// #region answer

// Answer runs one question through the full pipeline and returns its
// OutputRecord. The only hard failure is a RouterFailure; every other
// degradation finalizes with a best-effort record and reduced confidence.
func (o *Orchestrator) Answer(ctx context.Context, q Question) (OutputRecord, error) {
	s := &State{Question: q}
	m := NewMachine()

	cctx, cancel := o.stepCtx(ctx)
	decision, err := o.deps.Router.Classify(cctx, q)
	cancel()
	if err != nil {
		log.Printf("[ORCH] %s router failure: %v", q.ID, err)
		return MinimalRecord(q.ID, "router unavailable"), &RouterFailure{Err: err}
	}
	s.Route = decision
	s.addTrace("route", string(decision.Path))
	log.Printf("[ORCH] %s route=%s", q.ID, decision.Path)

	if decision.Path != PathQuery {
		o.retrieveAndPlan(ctx, m, s)
	}
	if decision.Path != PathDocument {
		o.runQueryLoop(ctx, m, s)
	}

	o.synthesizeAndValidate(ctx, m, s)
	o.to(m, s, PhaseFinalized)

	rec := OutputRecord{
		ID:          q.ID,
		FinalAnswer: s.Answer,
		SQL:         s.FinalSQL(),
		Confidence:  round2(Confidence(s)),
		Explanation: s.Explanation,
		Citations:   s.Citations,
	}
	if rec.Citations == nil {
		rec.Citations = []string{}
	}
	log.Printf("[ORCH] %s finalized confidence=%.2f attempts=%d repairs=%d",
		q.ID, rec.Confidence, len(s.Attempts), s.Repairs)
	return rec, nil
}

// #endregion

// #region retrieve-plan

func (o *Orchestrator) retrieveAndPlan(ctx context.Context, m *Machine, s *State) {
	cctx, cancel := o.stepCtx(ctx)
	chunks, err := o.deps.Retriever.Search(cctx, s.Question.Text, o.cfg.TopK)
	cancel()
	if err != nil {
		// Retrieval failure is non-fatal: continue with zero chunks.
		s.addTrace("retrieve", "failed, continuing with zero chunks: "+err.Error())
	} else {
		s.Chunks = chunks
		s.addTrace("retrieve", fmt.Sprintf("%d chunks", len(chunks)))
	}
	o.to(m, s, PhaseRetrieved)

	cctx, cancel = o.stepCtx(ctx)
	s.Constraints = o.deps.Planner.Plan(cctx, s.Question, s.Chunks)
	cancel()
	s.addTrace("plan", fmt.Sprintf("%d constraints", len(s.Constraints)))
	o.to(m, s, PhasePlanned)
}

// #endregion

// #region query-loop

func (o *Orchestrator) runQueryLoop(ctx context.Context, m *Machine, s *State) {
	cctx, cancel := o.stepCtx(ctx)
	sqlText, err := o.deps.Queries.Synthesize(cctx, s.Question, o.cfg.Schema, s.Constraints)
	cancel()
	if err != nil {
		// Generation collaborator failed: the query path was needed but
		// produced nothing, which counts as exhaustion for scoring.
		s.addTrace("generate_sql", "failed: "+err.Error())
		s.RepairsExhausted = true
		return
	}
	s.addTrace("generate_sql", sqlText)
	o.to(m, s, PhaseQuerySynthesized)

	for attempt := 0; ; {
		o.to(m, s, PhaseExecuting)
		cctx, cancel = o.stepCtx(ctx)
		rows, execErr := o.deps.Executor.Execute(cctx, sqlText)
		cancel()

		a := QueryAttempt{QueryText: sqlText, AttemptIndex: attempt}
		if execErr != nil {
			a.Err = execErr.Error()
		} else {
			a.Rows = rows
		}
		s.Attempts = append(s.Attempts, a)

		if execErr == nil {
			s.addTrace("execute_sql", fmt.Sprintf("rows=%d", len(rows.Values)))
			o.to(m, s, PhaseExecutionSucceeded)
			return
		}

		s.addTrace("execute_sql", "failed: "+a.Err)
		o.to(m, s, PhaseExecutionFailed)
		if attempt >= MaxRepairs {
			s.RepairsExhausted = true
			s.addTrace("repair", "budget exhausted")
			return
		}

		o.to(m, s, PhaseRefining)
		s.Repairs++
		cctx, cancel = o.stepCtx(ctx)
		// The refiner always sees the most recent failure, never the first.
		refined, refineErr := o.deps.Queries.Refine(cctx, s.Question, sqlText, a.Err, o.cfg.Schema)
		cancel()
		if refineErr != nil {
			s.RepairsExhausted = true
			s.addTrace("repair", "refiner failed: "+refineErr.Error())
			return
		}
		s.addTrace("repair", refined)
		sqlText = refined
		attempt++
	}
}

// #endregion

// #region synthesize-validate

func (o *Orchestrator) synthesizeAndValidate(ctx context.Context, m *Machine, s *State) {
	o.to(m, s, PhaseSynthesizing)

	req := SynthesisRequest{Question: s.Question, Chunks: s.UsedChunks()}
	if s.ExecutionSucceeded() {
		last := s.Attempts[len(s.Attempts)-1]
		req.Result = &last.Rows
		req.Tables = o.deps.Executor.ReferencedTables(last.QueryText)
	}

	res, err := o.synthesizeOnce(ctx, req)
	if err != nil {
		s.addTrace("synthesize", "failed: "+err.Error())
		res, err = o.synthesizeOnce(ctx, req)
	}
	if err != nil {
		// Coercion failed twice: substitute the typed zero value.
		s.FallbackUsed = true
		res = SynthesisResult{
			Value:       ZeroValue(s.Question.FormatHint),
			Explanation: "Best-effort answer; synthesis could not produce the requested type.",
			Citations:   BuildCitations(req.Chunks, req.Tables),
		}
		s.addTrace("synthesize", "fallback substituted")
	}
	s.Answer, s.Explanation, s.Citations = res.Value, res.Explanation, res.Citations

	o.to(m, s, PhaseValidating)
	needCitations := len(req.Chunks) > 0 || s.ExecutionSucceeded()
	verdict := Validate(s.Answer, s.Question.FormatHint, s.Explanation, s.Citations, needCitations)
	if verdict.Accept {
		s.addTrace("validate", "accepted")
		return
	}
	s.addTrace("validate", "rejected: "+verdict.Reason)
	o.to(m, s, PhaseValidationFailed)

	// One repair pass: re-synthesize with the rejection reason as feedback.
	o.to(m, s, PhaseReSynthesizing)
	req.Feedback = verdict.Reason
	if res, err = o.synthesizeOnce(ctx, req); err == nil {
		s.Answer, s.Explanation, s.Citations = res.Value, res.Explanation, res.Citations
	} else {
		s.addTrace("resynthesize", "failed: "+err.Error())
	}

	o.to(m, s, PhaseValidating)
	verdict = Validate(s.Answer, s.Question.FormatHint, s.Explanation, s.Citations, needCitations)
	if verdict.Accept {
		s.addTrace("validate", "accepted after re-synthesis")
		return
	}
	// Second rejection is terminal: keep the candidate, penalize confidence.
	s.DoubleRejected = true
	s.addTrace("validate", "second rejection, forced finalize: "+verdict.Reason)
	o.to(m, s, PhaseValidationFailed)
}

func (o *Orchestrator) synthesizeOnce(ctx context.Context, req SynthesisRequest) (SynthesisResult, error) {
	cctx, cancel := o.stepCtx(ctx)
	defer cancel()
	return o.deps.Synth.Synthesize(cctx, req)
}

// #endregion

// #region helpers

func (o *Orchestrator) stepCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.cfg.StepTimeout)
}

// to advances the machine. An illegal edge is a programming error in the
// transition table; it is recorded in the trace and forced so the question
// still finalizes.
func (o *Orchestrator) to(m *Machine, s *State, next Phase) {
	if err := m.To(next); err != nil {
		s.addTrace("machine", err.Error())
		m.phase = next
	}
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// #endregion
