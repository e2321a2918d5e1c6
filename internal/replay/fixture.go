package replay

// #region imports
import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
)

// #endregion

// #region fixture-types

// Fixture is the top-level JSON structure for a replay run: scripted
// collaborators plus questions and their expected records. Everything a
// pipeline run touches is pinned, so two replays of one fixture must be
// byte-identical.
type Fixture struct {
	Description string             `json:"description"`
	Rules       []llm.Rule         `json:"rules"`
	Corpus      []FixtureChunk     `json:"corpus"`
	Tables      []FixtureTable     `json:"tables"`
	Executions  []FixtureExecution `json:"executions"`
	Questions   []FixtureQuestion  `json:"questions"`
	Expected    []FixtureExpected  `json:"expected"`
}

// FixtureChunk is one corpus document chunk.
type FixtureChunk struct {
	SourceID string `json:"source_id"`
	ChunkID  string `json:"chunk_id"`
	Text     string `json:"text"`
}

// FixtureTable declares a warehouse table name for citation extraction.
type FixtureTable struct {
	Name string `json:"name"`
}

// FixtureExecution scripts one query outcome. The first execution whose
// contains-list matches the query is consumed; repeated executions of the
// same query walk down the list, which is how fail-then-succeed repair
// scenarios are scripted.
type FixtureExecution struct {
	Contains []string            `json:"contains"`
	Error    string              `json:"error,omitempty"`
	Columns  []string            `json:"columns,omitempty"`
	Rows     [][]json.RawMessage `json:"rows,omitempty"`
}

// FixtureQuestion mirrors one batch input line.
type FixtureQuestion struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
}

// FixtureExpected pins the record a question must produce.
type FixtureExpected struct {
	ID          string          `json:"id"`
	FinalAnswer json.RawMessage `json:"final_answer"`
	SQL         string          `json:"sql"`
	Confidence  float64         `json:"confidence"`
	Citations   []string        `json:"citations"`
}

// #endregion fixture-types

// #region load

// LoadFixture reads and validates a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture: %w", err)
	}
	if len(f.Questions) == 0 {
		return nil, fmt.Errorf("fixture has no questions")
	}
	expected := make(map[string]bool, len(f.Expected))
	for _, e := range f.Expected {
		expected[e.ID] = true
	}
	for _, q := range f.Questions {
		if q.ID == "" {
			return nil, fmt.Errorf("fixture question with empty id")
		}
		if len(f.Expected) > 0 && !expected[q.ID] {
			return nil, fmt.Errorf("question %s has no expected record", q.ID)
		}
	}
	return &f, nil
}

// #endregion load
