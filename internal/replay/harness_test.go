package replay

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
)

func raw(s string) json.RawMessage { return json.RawMessage(s) }

// countFixture scripts a single query-path question that succeeds on the
// first execution attempt.
func countFixture() *Fixture {
	return &Fixture{
		Description: "order count, first attempt succeeds",
		Rules: []llm.Rule{
			{
				Signature: llm.SigRouter,
				Contains:  []string{"how many"},
				Reply:     map[string]string{"reasoning": "Counting rows needs the database.", "route": "query"},
			},
			{
				Signature: llm.SigQuerySynthesis,
				Contains:  []string{"how many orders"},
				Reply:     map[string]string{"sql": "SELECT COUNT(*) FROM Orders"},
			},
			{
				Signature: llm.SigAnswerSynthesis,
				Contains:  []string{"how many orders"},
				Reply:     map[string]string{"reasoning": "The warehouse holds 830 orders.", "answer": "830"},
			},
		},
		Tables: []FixtureTable{{Name: "Orders"}},
		Executions: []FixtureExecution{
			{
				Contains: []string{"count(*)", "from orders"},
				Columns:  []string{"n"},
				Rows:     [][]json.RawMessage{{raw("830")}},
			},
		},
		Questions: []FixtureQuestion{
			{ID: "q1", Question: "How many orders were placed in total?", FormatHint: "int"},
		},
		Expected: []FixtureExpected{
			{
				ID:          "q1",
				FinalAnswer: raw("830"),
				SQL:         "SELECT COUNT(*) FROM Orders",
				Confidence:  0.5,
				Citations:   []string{"Orders"},
			},
		},
	}
}

// repairFixture scripts a failed first execution followed by a successful
// refined query: one repair, corrected SQL in the record.
func repairFixture() *Fixture {
	return &Fixture{
		Description: "broken table name repaired on the second attempt",
		Rules: []llm.Rule{
			{
				Signature: llm.SigRouter,
				Contains:  []string{"how many"},
				Reply:     map[string]string{"reasoning": "Counting rows needs the database.", "route": "query"},
			},
			{
				Signature: llm.SigQuerySynthesis,
				Contains:  []string{"order detail"},
				Reply:     map[string]string{"sql": "SELECT COUNT(*) FROM Detail"},
			},
			{
				Signature: llm.SigQueryRefinement,
				Contains:  []string{"no such table"},
				Reply:     map[string]string{"sql": `SELECT COUNT(*) FROM "Order Details"`},
			},
			{
				Signature: llm.SigAnswerSynthesis,
				Contains:  []string{"order detail"},
				Reply:     map[string]string{"reasoning": "There are 2155 order detail lines.", "answer": "2155"},
			},
		},
		Tables: []FixtureTable{{Name: "Order Details"}},
		Executions: []FixtureExecution{
			{
				Contains: []string{"from detail"},
				Error:    "no such table: Detail",
			},
			{
				Contains: []string{"order details"},
				Columns:  []string{"n"},
				Rows:     [][]json.RawMessage{{raw("2155")}},
			},
		},
		Questions: []FixtureQuestion{
			{ID: "q1", Question: "How many order detail lines exist?", FormatHint: "int"},
		},
		Expected: []FixtureExpected{
			{
				ID:          "q1",
				FinalAnswer: raw("2155"),
				SQL:         `SELECT COUNT(*) FROM "Order Details"`,
				Confidence:  0.45,
				Citations:   []string{"Order Details"},
			},
		},
	}
}

func TestReplay_FirstAttemptSuccess(t *testing.T) {
	results, summary, err := Replay(countFixture())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Total != 1 || summary.Passed != 1 {
		t.Fatalf("summary = %+v, want 1/1", summary)
	}
	if !results[0].Pass() {
		t.Errorf("mismatches: %v", results[0].Mismatches)
	}
	if results[0].Record.SQL != "SELECT COUNT(*) FROM Orders" {
		t.Errorf("sql = %q", results[0].Record.SQL)
	}
}

func TestReplay_RepairedQueryKeepsCorrectedSQL(t *testing.T) {
	results, summary, err := Replay(repairFixture())
	if err != nil {
		t.Fatal(err)
	}
	if summary.Passed != 1 {
		t.Fatalf("mismatches: %v", results[0].Mismatches)
	}
	rec := results[0].Record
	if rec.SQL != `SELECT COUNT(*) FROM "Order Details"` {
		t.Errorf("sql = %q, want the refined query", rec.SQL)
	}
	if rec.Confidence != 0.45 {
		t.Errorf("confidence = %.2f, want 0.45", rec.Confidence)
	}
}

func TestReplay_Deterministic(t *testing.T) {
	a, _, err := Replay(repairFixture())
	if err != nil {
		t.Fatal(err)
	}
	b, _, err := Replay(repairFixture())
	if err != nil {
		t.Fatal(err)
	}
	ja, _ := json.Marshal(a[0].Record)
	jb, _ := json.Marshal(b[0].Record)
	if string(ja) != string(jb) {
		t.Errorf("records differ between replays:\n%s\n%s", ja, jb)
	}
}

func TestReplay_ReportsMismatch(t *testing.T) {
	f := countFixture()
	f.Expected[0].Confidence = 0.99

	results, summary, err := Replay(f)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Passed != 0 {
		t.Fatal("expected a failing result")
	}
	if len(results[0].Mismatches) != 1 {
		t.Errorf("mismatches = %v, want exactly the confidence one", results[0].Mismatches)
	}
}

func TestScriptedExecutor_ConsumesEntriesInOrder(t *testing.T) {
	exec := newScriptedExecutor(repairFixture())

	if _, err := exec.Execute(context.Background(), "SELECT COUNT(*) FROM Detail"); err == nil {
		t.Fatal("first entry should script a failure")
	}
	rows, err := exec.Execute(context.Background(), `SELECT COUNT(*) FROM "Order Details"`)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows.Values) != 1 {
		t.Errorf("got %d rows, want 1", len(rows.Values))
	}
	if _, err := exec.Execute(context.Background(), `SELECT COUNT(*) FROM "Order Details"`); err == nil {
		t.Error("entries must not be reused once consumed")
	}
}

func TestScriptedExecutor_ReferencedTablesWordBoundary(t *testing.T) {
	exec := newScriptedExecutor(&Fixture{Tables: []FixtureTable{{Name: "Orders"}, {Name: "Products"}}})

	got := exec.ReferencedTables("SELECT * FROM Orders JOIN Reorders r ON 1=1")
	if len(got) != 1 || got[0] != "Orders" {
		t.Errorf("tables = %v, want [Orders]", got)
	}
}

func TestLoadFixture_RoundTrip(t *testing.T) {
	data, err := json.Marshal(countFixture())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := LoadFixture(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Questions) != 1 || f.Questions[0].ID != "q1" {
		t.Errorf("questions = %+v", f.Questions)
	}
}

func TestLoadFixture_RejectsUnmatchedQuestion(t *testing.T) {
	f := countFixture()
	f.Expected[0].ID = "other"
	data, _ := json.Marshal(f)
	path := filepath.Join(t.TempDir(), "fixture.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadFixture(path); err == nil {
		t.Error("expected validation error for question without expected record")
	}
}
