package sqlgen

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
)

// #endregion

// #region generator

// Generator produces and repairs SQL query text through the model gateway.
// Both operations are pure functions of their inputs; no state is shared
// between calls.
type Generator struct {
	gw llm.Gateway
}

// New creates a Generator backed by the given gateway.
func New(gw llm.Gateway) *Generator {
	return &Generator{gw: gw}
}

// #endregion

// #region synthesize

// Synthesize produces a candidate query from the question, schema, and
// planner constraints.
func (g *Generator) Synthesize(ctx context.Context, q agent.Question, schema string, cons []agent.Constraint) (string, error) {
	reply, err := g.gw.GenerateQuery(ctx, llm.QueryRequest{
		Question: q.Text,
		Schema:   schema,
		Context:  FormatConstraints(cons),
	})
	if err != nil {
		return "", err
	}
	sql := llm.CleanSQL(reply.SQL)
	if sql == "" {
		return "", fmt.Errorf("query synthesis returned empty SQL")
	}
	return sql, nil
}

// #endregion

// #region refine

// Refine corrects a failed query. errMsg must be the literal error of the
// most recent attempt — repairing against a stale error would re-apply a
// fix the engine already rejected.
func (g *Generator) Refine(ctx context.Context, q agent.Question, failedSQL, errMsg, schema string) (string, error) {
	reply, err := g.gw.RefineQuery(ctx, llm.RefineRequest{
		Question:     q.Text,
		FailedSQL:    failedSQL,
		ErrorMessage: errMsg,
		Schema:       schema,
	})
	if err != nil {
		return "", err
	}
	sql := llm.CleanSQL(reply.SQL)
	if sql == "" {
		return "", fmt.Errorf("query refinement returned empty SQL")
	}
	return sql, nil
}

// #endregion

// #region constraints

// FormatConstraints renders constraints as "kind: value" lines for the
// generation prompt. Empty input renders empty, which the gateway replaces
// with its no-context marker.
func FormatConstraints(cons []agent.Constraint) string {
	if len(cons) == 0 {
		return ""
	}
	lines := make([]string, len(cons))
	for i, c := range cons {
		lines[i] = string(c.Kind) + ": " + c.Value
	}
	return strings.Join(lines, "\n")
}

// #endregion
