package planner

// #region imports
import (
	"context"
	"log"
	"strings"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
)

// #endregion

// #region planner

// Planner extracts structured constraints from retrieved document chunks.
// It never fails hard: collaborator errors and unusable extractions both
// yield an empty constraint list.
type Planner struct {
	gw llm.Gateway
}

// New creates a Planner backed by the given gateway.
func New(gw llm.Gateway) *Planner {
	return &Planner{gw: gw}
}

// Plan returns the constraints extractable from the chunks, in extraction
// order. Deterministic given identical chunks and gateway behavior.
func (p *Planner) Plan(ctx context.Context, q agent.Question, chunks []retrieval.Chunk) []agent.Constraint {
	if len(chunks) == 0 {
		return nil
	}

	reply, err := p.gw.ExtractConstraints(ctx, llm.ConstraintRequest{
		Question:   q.Text,
		DocContext: retrieval.FormatContext(chunks),
	})
	if err != nil {
		log.Printf("[PLAN] %s constraint extraction failed: %v", q.ID, err)
		return nil
	}
	return ParseConstraints(reply.Constraints)
}

// #endregion

// #region parse

// ParseConstraints reads "kind: value" lines into typed constraints. Lines
// without a recognizable kind become ConstraintOther; blank lines and
// no-constraint markers are dropped.
func ParseConstraints(text string) []agent.Constraint {
	var out []agent.Constraint
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "-"))
		if line == "" || strings.EqualFold(line, "none") ||
			strings.HasPrefix(strings.ToLower(line), "no constraint") ||
			strings.HasPrefix(strings.ToLower(line), "no specific constraint") {
			continue
		}

		kind, value := agent.ConstraintOther, line
		if i := strings.Index(line, ":"); i > 0 {
			if k, ok := parseKind(line[:i]); ok {
				kind = k
				value = strings.TrimSpace(line[i+1:])
			}
		}
		if value == "" {
			continue
		}
		out = append(out, agent.Constraint{Kind: kind, Value: value})
	}
	return out
}

func parseKind(raw string) (agent.ConstraintKind, bool) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "_")
	switch agent.ConstraintKind(normalized) {
	case agent.ConstraintDateRange, agent.ConstraintCategory,
		agent.ConstraintFormula, agent.ConstraintOther:
		return agent.ConstraintKind(normalized), true
	}
	if normalized == "date" || normalized == "dates" || normalized == "period" {
		return agent.ConstraintDateRange, true
	}
	if normalized == "categories" {
		return agent.ConstraintCategory, true
	}
	if normalized == "kpi" || normalized == "kpi_formula" {
		return agent.ConstraintFormula, true
	}
	return "", false
}

// #endregion
