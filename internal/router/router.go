package router

// #region imports
import (
	"context"
	"log"
	"strings"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
)

// #endregion

// #region keywords

// documentKeywords mark questions answerable from policy/definition docs.
var documentKeywords = []string{
	"policy", "return", "window", "days", "definition", "defined",
}

// queryKeywords mark questions needing numbers from the database.
var queryKeywords = []string{
	"revenue", "top", "total", "sum", "count", "average", "aov", "margin",
}

// hybridKeywords mark numeric questions that also need document context.
var hybridKeywords = []string{
	"during", "campaign", "marketing", "calendar",
}

// #endregion

// #region router

// Router classifies a question into a processing path via the model
// gateway, with a keyword fallback when the label is unusable.
type Router struct {
	gw llm.Gateway
}

// New creates a Router backed by the given gateway.
func New(gw llm.Gateway) *Router {
	return &Router{gw: gw}
}

// Classify returns the routing decision for a question. An unreachable
// collaborator is the only error; unrecognized labels never fail.
func (r *Router) Classify(ctx context.Context, q agent.Question) (agent.RoutingDecision, error) {
	reply, err := r.gw.Route(ctx, llm.RouteRequest{Question: q.Text})
	if err != nil {
		return agent.RoutingDecision{}, err
	}

	path, ok := normalizeLabel(reply.Route)
	if !ok {
		path = keywordFallback(q.Text)
		log.Printf("[ROUTE] %s unrecognized label %q, fallback=%s", q.ID, reply.Route, path)
	}
	return agent.RoutingDecision{Path: path}, nil
}

// #endregion

// #region normalize

// normalizeLabel maps model output to a path, tolerating the labels the
// underlying models actually emit.
func normalizeLabel(label string) (agent.Path, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "document", "doc", "docs", "rag":
		return agent.PathDocument, true
	case "query", "sql":
		return agent.PathQuery, true
	case "hybrid", "both":
		return agent.PathHybrid, true
	}
	return "", false
}

// keywordFallback classifies by keyword heuristics. Hybrid is the default:
// it is the superset path, safe when the question is ambiguous.
func keywordFallback(question string) agent.Path {
	lower := strings.ToLower(question)

	for _, kw := range documentKeywords {
		if strings.Contains(lower, kw) {
			return agent.PathDocument
		}
	}
	for _, kw := range queryKeywords {
		if !strings.Contains(lower, kw) {
			continue
		}
		for _, hk := range hybridKeywords {
			if strings.Contains(lower, hk) {
				return agent.PathHybrid
			}
		}
		return agent.PathQuery
	}
	return agent.PathHybrid
}

// #endregion
