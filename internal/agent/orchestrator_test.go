package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/warehouse"
)

// #region fakes

type fakeRouter struct {
	path Path
	err  error
}

func (f fakeRouter) Classify(context.Context, Question) (RoutingDecision, error) {
	if f.err != nil {
		return RoutingDecision{}, f.err
	}
	return RoutingDecision{Path: f.path}, nil
}

type fakeRetriever struct {
	chunks []retrieval.Chunk
	err    error
	calls  int
}

func (f *fakeRetriever) Search(context.Context, string, int) ([]retrieval.Chunk, error) {
	f.calls++
	return f.chunks, f.err
}

type fakePlanner struct {
	cons []Constraint
}

func (f fakePlanner) Plan(context.Context, Question, []retrieval.Chunk) []Constraint {
	return f.cons
}

type fakeQueries struct {
	sql      string
	synthErr error
	refined  string
	refines  int
}

func (f *fakeQueries) Synthesize(context.Context, Question, string, []Constraint) (string, error) {
	if f.synthErr != nil {
		return "", f.synthErr
	}
	return f.sql, nil
}

func (f *fakeQueries) Refine(context.Context, Question, string, string, string) (string, error) {
	f.refines++
	return f.refined, nil
}

// fakeExecutor fails the first `failures` calls, then succeeds.
type fakeExecutor struct {
	failures int
	rows     warehouse.Rows
	tables   []string
	calls    int
}

func (f *fakeExecutor) Execute(context.Context, string) (warehouse.Rows, error) {
	f.calls++
	if f.calls <= f.failures {
		return warehouse.Rows{}, &warehouse.QueryError{Message: fmt.Sprintf("failure %d", f.calls)}
	}
	return f.rows, nil
}

func (f *fakeExecutor) ReferencedTables(string) []string {
	return f.tables
}

// fakeSynth fails the first `failures` calls, then returns res.
type fakeSynth struct {
	res      SynthesisResult
	failures int
	calls    int
	lastReq  SynthesisRequest
}

func (f *fakeSynth) Synthesize(_ context.Context, req SynthesisRequest) (SynthesisResult, error) {
	f.calls++
	f.lastReq = req
	if f.calls <= f.failures {
		return SynthesisResult{}, &SynthesisError{Reason: "unparseable reply"}
	}
	return f.res, nil
}

func goodSynth(value any, citations ...string) *fakeSynth {
	return &fakeSynth{res: SynthesisResult{
		Value:       value,
		Explanation: "Derived from the available evidence.",
		Citations:   citations,
	}}
}

func newTestOrchestrator(deps Deps) *Orchestrator {
	if deps.Planner == nil {
		deps.Planner = fakePlanner{}
	}
	if deps.Retriever == nil {
		deps.Retriever = &fakeRetriever{}
	}
	if deps.Queries == nil {
		deps.Queries = &fakeQueries{sql: "SELECT 1"}
	}
	if deps.Executor == nil {
		deps.Executor = &fakeExecutor{}
	}
	return New(deps, Config{Schema: "Orders(OrderID)"})
}

// #endregion fakes

// #region scenarios

func TestAnswer_DocumentPath(t *testing.T) {
	retr := &fakeRetriever{chunks: []retrieval.Chunk{
		chunkWithScore("chunk0", 0.8),
		chunkWithScore("chunk1", 0.6),
	}}
	exec := &fakeExecutor{}
	o := newTestOrchestrator(Deps{
		Router:    fakeRouter{path: PathDocument},
		Retriever: retr,
		Executor:  exec,
		Synth:     goodSynth(14, "doc::chunk0"),
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", Text: "return window?", FormatHint: FormatInt})
	if err != nil {
		t.Fatal(err)
	}
	if rec.FinalAnswer != 14 {
		t.Errorf("final_answer = %v, want 14", rec.FinalAnswer)
	}
	if rec.SQL != "" {
		t.Errorf("sql = %q, want empty on document path", rec.SQL)
	}
	if exec.calls != 0 {
		t.Errorf("executor called %d times on document path", exec.calls)
	}
	// 1.0 × (0.5 + 0.5×0.7) = 0.85
	if rec.Confidence != 0.85 {
		t.Errorf("confidence = %.2f, want 0.85", rec.Confidence)
	}
}

func TestAnswer_QueryPathSkipsRetrieval(t *testing.T) {
	retr := &fakeRetriever{}
	o := newTestOrchestrator(Deps{
		Router:    fakeRouter{path: PathQuery},
		Retriever: retr,
		Executor:  &fakeExecutor{rows: warehouse.Rows{Columns: []string{"n"}, Values: [][]any{{int64(830)}}}, tables: []string{"Orders"}},
		Synth:     goodSynth(830, "Orders"),
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", Text: "how many orders?", FormatHint: FormatInt})
	if err != nil {
		t.Fatal(err)
	}
	if retr.calls != 0 {
		t.Errorf("retriever called %d times on query path", retr.calls)
	}
	if rec.SQL != "SELECT 1" {
		t.Errorf("sql = %q", rec.SQL)
	}
	if rec.Confidence != 0.5 {
		t.Errorf("confidence = %.2f, want 0.5 (no chunks)", rec.Confidence)
	}
}

func TestAnswer_RepairSucceedsOnSecondAttempt(t *testing.T) {
	queries := &fakeQueries{sql: "SELECT broken", refined: "SELECT fixed"}
	exec := &fakeExecutor{failures: 1, tables: []string{"Orders"}}
	o := newTestOrchestrator(Deps{
		Router:   fakeRouter{path: PathQuery},
		Queries:  queries,
		Executor: exec,
		Synth:    goodSynth(1, "Orders"),
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", FormatHint: FormatInt})
	if err != nil {
		t.Fatal(err)
	}
	if rec.SQL != "SELECT fixed" {
		t.Errorf("sql = %q, want the corrected query", rec.SQL)
	}
	if queries.refines != 1 {
		t.Errorf("refine called %d times, want 1", queries.refines)
	}
	// 0.5 × 0.9^1
	if rec.Confidence != 0.45 {
		t.Errorf("confidence = %.2f, want 0.45", rec.Confidence)
	}
}

func TestAnswer_RepairBudgetExhausted(t *testing.T) {
	exec := &fakeExecutor{failures: 10}
	synth := goodSynth(0)
	o := newTestOrchestrator(Deps{
		Router:   fakeRouter{path: PathQuery},
		Queries:  &fakeQueries{sql: "SELECT broken", refined: "SELECT still broken"},
		Executor: exec,
		Synth:    synth,
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", FormatHint: FormatInt})
	if err != nil {
		t.Fatal(err)
	}
	if exec.calls != MaxRepairs+1 {
		t.Errorf("executor called %d times, want %d", exec.calls, MaxRepairs+1)
	}
	if synth.lastReq.Result != nil {
		t.Error("synthesizer must not see rows after total execution failure")
	}
	// 0.5 × 0.6 × 0.9^2 = 0.243
	if rec.Confidence != 0.24 {
		t.Errorf("confidence = %.2f, want 0.24", rec.Confidence)
	}
}

func TestAnswer_GenerationFailureCountsAsExhaustion(t *testing.T) {
	o := newTestOrchestrator(Deps{
		Router:  fakeRouter{path: PathQuery},
		Queries: &fakeQueries{synthErr: errors.New("gateway timeout")},
		Synth:   goodSynth(0),
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", FormatHint: FormatInt})
	if err != nil {
		t.Fatal(err)
	}
	if rec.SQL != "" {
		t.Errorf("sql = %q, want empty when generation never produced a query", rec.SQL)
	}
	// 0.5 × 0.6, zero repair attempts taken
	if rec.Confidence != 0.3 {
		t.Errorf("confidence = %.2f, want 0.30", rec.Confidence)
	}
}

func TestAnswer_RouterFailureIsFatalForQuestionOnly(t *testing.T) {
	o := newTestOrchestrator(Deps{
		Router: fakeRouter{err: errors.New("connection refused")},
		Synth:  goodSynth(0),
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q9", FormatHint: FormatInt})
	if err == nil {
		t.Fatal("expected RouterFailure")
	}
	var rf *RouterFailure
	if !errors.As(err, &rf) {
		t.Fatalf("error type %T, want *RouterFailure", err)
	}
	if rec.ID != "q9" || rec.Confidence != 0 || rec.FinalAnswer != nil {
		t.Errorf("minimal record = %+v", rec)
	}
}

func TestAnswer_SynthesisFallbackAfterRetry(t *testing.T) {
	retr := &fakeRetriever{chunks: []retrieval.Chunk{chunkWithScore("chunk0", 1.0)}}
	synth := &fakeSynth{failures: 10}
	o := newTestOrchestrator(Deps{
		Router:    fakeRouter{path: PathDocument},
		Retriever: retr,
		Synth:     synth,
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", FormatHint: FormatList})
	if err != nil {
		t.Fatal(err)
	}
	if synth.calls != 2 {
		t.Errorf("synthesizer called %d times, want one retry", synth.calls)
	}
	if !reflect.DeepEqual(rec.FinalAnswer, []any{}) {
		t.Errorf("final_answer = %#v, want the typed zero value", rec.FinalAnswer)
	}
	if !reflect.DeepEqual(rec.Citations, []string{"doc::chunk0"}) {
		t.Errorf("citations = %v, want the used chunk", rec.Citations)
	}
	// base 0.3 × (0.5 + 0.5×1.0)
	if rec.Confidence != 0.3 {
		t.Errorf("confidence = %.2f, want 0.30", rec.Confidence)
	}
}

func TestAnswer_DoubleValidationRejection(t *testing.T) {
	retr := &fakeRetriever{chunks: []retrieval.Chunk{chunkWithScore("chunk0", 1.0)}}
	// Valid type and explanation, but never any citations: rejected twice.
	synth := &fakeSynth{res: SynthesisResult{Value: "answer", Explanation: "Fine."}}
	o := newTestOrchestrator(Deps{
		Router:    fakeRouter{path: PathDocument},
		Retriever: retr,
		Synth:     synth,
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", FormatHint: FormatString})
	if err != nil {
		t.Fatal(err)
	}
	if synth.calls != 2 {
		t.Errorf("synthesizer called %d times, want re-synthesis exactly once", synth.calls)
	}
	if synth.lastReq.Feedback == "" {
		t.Error("re-synthesis must carry the rejection reason as feedback")
	}
	if rec.FinalAnswer != "answer" {
		t.Errorf("final_answer = %v, rejected candidate must be retained", rec.FinalAnswer)
	}
	if rec.Confidence != 0.3 {
		t.Errorf("confidence = %.2f, want 0.30", rec.Confidence)
	}
}

func TestAnswer_RetrievalFailureContinuesWithZeroChunks(t *testing.T) {
	retr := &fakeRetriever{err: errors.New("index unavailable")}
	synth := goodSynth(42.0, "Orders")
	o := newTestOrchestrator(Deps{
		Router:    fakeRouter{path: PathHybrid},
		Retriever: retr,
		Executor:  &fakeExecutor{tables: []string{"Orders"}},
		Synth:     synth,
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", FormatHint: FormatFloat})
	if err != nil {
		t.Fatal(err)
	}
	if len(synth.lastReq.Chunks) != 0 {
		t.Errorf("synthesizer saw %d chunks after retrieval failure", len(synth.lastReq.Chunks))
	}
	// Hybrid base stays 1.0; zero chunks collapse the document factor.
	if rec.Confidence != 0.5 {
		t.Errorf("confidence = %.2f, want 0.5", rec.Confidence)
	}
}

func TestAnswer_Idempotent(t *testing.T) {
	build := func() *Orchestrator {
		return newTestOrchestrator(Deps{
			Router:    fakeRouter{path: PathHybrid},
			Retriever: &fakeRetriever{chunks: []retrieval.Chunk{chunkWithScore("chunk0", 0.5)}},
			Executor:  &fakeExecutor{failures: 1, tables: []string{"Orders"}},
			Queries:   &fakeQueries{sql: "SELECT a", refined: "SELECT b"},
			Synth:     goodSynth(7, "doc::chunk0", "Orders"),
		})
	}
	q := Question{ID: "q1", Text: "same question", FormatHint: FormatInt}

	recA, err := build().Answer(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	recB, err := build().Answer(context.Background(), q)
	if err != nil {
		t.Fatal(err)
	}
	ja, _ := json.Marshal(recA)
	jb, _ := json.Marshal(recB)
	if string(ja) != string(jb) {
		t.Errorf("records differ across identical runs:\n%s\n%s", ja, jb)
	}
}

func TestAnswer_CitationsNeverNull(t *testing.T) {
	o := newTestOrchestrator(Deps{
		Router: fakeRouter{path: PathQuery},
		Synth:  &fakeSynth{res: SynthesisResult{Value: 1, Explanation: "Fine.", Citations: []string{"Orders"}}},
	})

	rec, err := o.Answer(context.Background(), Question{ID: "q1", FormatHint: FormatInt})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatal(err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["citations"] == nil {
		t.Error("citations serialized as null")
	}
}

// #endregion scenarios
