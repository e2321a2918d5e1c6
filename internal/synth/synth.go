package synth

// #region imports
import (
	"context"
	"fmt"
	"strings"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/warehouse"
)

// #endregion

// #region synthesizer

// maxResultRows bounds how many result rows reach the synthesis prompt.
const maxResultRows = 10

// Synthesizer turns evidence (chunks, query results) into a typed answer
// with an explanation and deterministic citations.
type Synthesizer struct {
	gw llm.Gateway
}

// New creates a Synthesizer backed by the given gateway.
func New(gw llm.Gateway) *Synthesizer {
	return &Synthesizer{gw: gw}
}

// Synthesize produces the final answer for a question. A value that cannot
// be coerced to the format hint is a *agent.SynthesisError, never a
// fabricated value.
func (s *Synthesizer) Synthesize(ctx context.Context, req agent.SynthesisRequest) (agent.SynthesisResult, error) {
	reply, err := s.gw.SynthesizeAnswer(ctx, llm.AnswerRequest{
		Question:   req.Question.Text,
		FormatHint: string(req.Question.FormatHint),
		DocContext: retrieval.FormatContext(req.Chunks),
		SQLResult:  FormatRows(req.Result),
		Feedback:   req.Feedback,
	})
	if err != nil {
		return agent.SynthesisResult{}, err
	}

	value, err := Coerce(reply.Answer, req.Question.FormatHint)
	if err != nil {
		return agent.SynthesisResult{}, err
	}

	return agent.SynthesisResult{
		Value:       value,
		Explanation: strings.TrimSpace(reply.Reasoning),
		Citations:   agent.BuildCitations(req.Chunks, req.Tables),
	}, nil
}

// #endregion

// #region rows

// FormatRows renders a query result for the synthesis prompt: the column
// list and at most maxResultRows rows. Nil means the query path was unused
// or never succeeded.
func FormatRows(rows *warehouse.Rows) string {
	if rows == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Columns: %s", strings.Join(rows.Columns, ", "))
	for i, row := range rows.Values {
		if i >= maxResultRows {
			fmt.Fprintf(&b, "\n... %d more rows", len(rows.Values)-maxResultRows)
			break
		}
		b.WriteByte('\n')
		for j, v := range row {
			if j > 0 {
				b.WriteString(" | ")
			}
			fmt.Fprintf(&b, "%v", v)
		}
	}
	return b.String()
}

// #endregion
