package replay

// #region imports
import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/planner"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/router"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/sqlgen"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/synth"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/warehouse"
)

// #endregion

// #region scripted-executor

// scriptedExecutor serves query results from the fixture's execution list.
// Each entry is consumed at most once, in order, so a repair scenario
// scripts a failing entry followed by a succeeding one for the same query.
type scriptedExecutor struct {
	mu         sync.Mutex
	executions []FixtureExecution
	consumed   []bool
	tables     []string
}

func newScriptedExecutor(f *Fixture) *scriptedExecutor {
	tables := make([]string, 0, len(f.Tables))
	for _, t := range f.Tables {
		tables = append(tables, t.Name)
	}
	return &scriptedExecutor{
		executions: f.Executions,
		consumed:   make([]bool, len(f.Executions)),
		tables:     tables,
	}
}

func (e *scriptedExecutor) Execute(_ context.Context, query string) (warehouse.Rows, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	lower := strings.ToLower(query)
	for i, ex := range e.executions {
		if e.consumed[i] || !matchesAll(lower, ex.Contains) {
			continue
		}
		e.consumed[i] = true
		if ex.Error != "" {
			return warehouse.Rows{}, &warehouse.QueryError{Message: ex.Error}
		}
		return decodeRows(ex)
	}
	return warehouse.Rows{}, &warehouse.QueryError{Message: "no scripted execution matches query"}
}

// ReferencedTables matches declared fixture tables against the query with
// the same word-boundary semantics the live warehouse uses.
func (e *scriptedExecutor) ReferencedTables(query string) []string {
	upper := strings.ToUpper(query)
	var out []string
	for _, name := range e.tables {
		if mentionsTable(upper, strings.ToUpper(name)) {
			out = append(out, name)
		}
	}
	return out
}

func matchesAll(lower string, needles []string) bool {
	for _, n := range needles {
		if !strings.Contains(lower, strings.ToLower(n)) {
			return false
		}
	}
	return true
}

func mentionsTable(upper, name string) bool {
	for idx := 0; ; {
		i := strings.Index(upper[idx:], name)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(name)
		if boundary(upper, start-1) && boundary(upper, end) {
			return true
		}
		idx = start + 1
	}
}

func boundary(s string, i int) bool {
	if i < 0 || i >= len(s) {
		return true
	}
	c := s[i]
	return !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') && c != '_'
}

func decodeRows(ex FixtureExecution) (warehouse.Rows, error) {
	rows := warehouse.Rows{Columns: ex.Columns}
	for _, raw := range ex.Rows {
		row := make([]any, len(raw))
		for j, cell := range raw {
			var v any
			if err := json.Unmarshal(cell, &v); err != nil {
				return warehouse.Rows{}, fmt.Errorf("decode fixture row cell: %w", err)
			}
			row[j] = v
		}
		rows.Values = append(rows.Values, row)
	}
	return rows, nil
}

// #endregion scripted-executor

// #region result-types

// Result records one replayed question: the record it produced and every
// field that diverged from the fixture's expectation.
type Result struct {
	ID         string
	Record     agent.OutputRecord
	Mismatches []string
}

// Pass reports whether the replayed record matched its expectation.
func (r Result) Pass() bool {
	return len(r.Mismatches) == 0
}

// Summary aggregates a replay run.
type Summary struct {
	Total  int
	Passed int
}

// #endregion result-types

// #region replay

// Replay runs every fixture question through a pipeline wired entirely
// from scripted collaborators and compares the produced records against
// the fixture's expectations.
func Replay(f *Fixture) ([]Result, Summary, error) {
	gw := llm.NewScripted(f.Rules)

	chunks := make([]retrieval.Chunk, 0, len(f.Corpus))
	for _, c := range f.Corpus {
		chunks = append(chunks, retrieval.Chunk{SourceID: c.SourceID, ChunkID: c.ChunkID, Text: c.Text})
	}
	retr := retrieval.NewRetriever(chunks, retrieval.DefaultConfig())
	exec := newScriptedExecutor(f)

	cfg := agent.DefaultConfig()
	cfg.Schema = fixtureSchema(f)
	orch := agent.New(agent.Deps{
		Router:    router.New(gw),
		Retriever: retr,
		Planner:   planner.New(gw),
		Queries:   sqlgen.New(gw),
		Executor:  exec,
		Synth:     synth.New(gw),
	}, cfg)

	expected := make(map[string]FixtureExpected, len(f.Expected))
	for _, e := range f.Expected {
		expected[e.ID] = e
	}

	results := make([]Result, 0, len(f.Questions))
	summary := Summary{Total: len(f.Questions)}
	for _, q := range f.Questions {
		rec, err := orch.Answer(context.Background(), agent.Question{
			ID:         q.ID,
			Text:       q.Question,
			FormatHint: agent.ParseFormatHint(q.FormatHint),
		})
		if err != nil {
			return nil, Summary{}, fmt.Errorf("replay question %s: %w", q.ID, err)
		}

		res := Result{ID: q.ID, Record: rec}
		if want, ok := expected[q.ID]; ok {
			res.Mismatches = compare(rec, want)
		}
		if res.Pass() {
			summary.Passed++
		}
		results = append(results, res)
	}
	return results, summary, nil
}

func fixtureSchema(f *Fixture) string {
	var b strings.Builder
	for _, t := range f.Tables {
		b.WriteString(t.Name)
		b.WriteByte('\n')
	}
	return b.String()
}

// #endregion replay

// #region compare

func compare(got agent.OutputRecord, want FixtureExpected) []string {
	var mismatches []string

	gotAnswer, err := json.Marshal(got.FinalAnswer)
	if err != nil {
		mismatches = append(mismatches, fmt.Sprintf("final_answer not marshalable: %v", err))
	} else if !jsonEqual(gotAnswer, want.FinalAnswer) {
		mismatches = append(mismatches, fmt.Sprintf("final_answer = %s, want %s", gotAnswer, want.FinalAnswer))
	}

	if got.SQL != want.SQL {
		mismatches = append(mismatches, fmt.Sprintf("sql = %q, want %q", got.SQL, want.SQL))
	}
	if got.Confidence != want.Confidence {
		mismatches = append(mismatches, fmt.Sprintf("confidence = %.2f, want %.2f", got.Confidence, want.Confidence))
	}

	wantCitations := want.Citations
	if wantCitations == nil {
		wantCitations = []string{}
	}
	if !reflect.DeepEqual(got.Citations, wantCitations) {
		mismatches = append(mismatches, fmt.Sprintf("citations = %v, want %v", got.Citations, wantCitations))
	}
	return mismatches
}

// jsonEqual compares two JSON documents structurally, ignoring formatting.
func jsonEqual(a, b json.RawMessage) bool {
	var ca, cb bytes.Buffer
	if err := json.Compact(&ca, a); err != nil {
		return false
	}
	if err := json.Compact(&cb, b); err != nil {
		return false
	}
	if bytes.Equal(ca.Bytes(), cb.Bytes()) {
		return true
	}
	var va, vb any
	if json.Unmarshal(a, &va) != nil || json.Unmarshal(b, &vb) != nil {
		return false
	}
	return reflect.DeepEqual(va, vb)
}

// #endregion compare
