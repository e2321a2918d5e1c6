package llm

import (
	"context"
	"errors"
	"strings"
)

// #region rules

// Rule matches a request by substrings and supplies a canned reply.
// Rules are evaluated in order; the first match wins, which keeps the
// scripted gateway fully deterministic.
type Rule struct {
	Signature Signature         `json:"signature"`
	Contains  []string          `json:"contains"` // all must appear (case-insensitive)
	Reply     map[string]string `json:"reply"`
	Fail      bool              `json:"fail,omitempty"` // simulate a collaborator failure
}

func (r Rule) matches(sig Signature, haystack string) bool {
	if r.Signature != sig {
		return false
	}
	for _, needle := range r.Contains {
		if !strings.Contains(haystack, strings.ToLower(needle)) {
			return false
		}
	}
	return true
}

// #endregion

// #region scripted

// Scripted is a rule-driven Gateway used by tests, replay fixtures, and
// offline runs. It never calls out and is safe for concurrent use.
type Scripted struct {
	rules []Rule
}

// NewScripted builds a scripted gateway from an ordered rule list.
func NewScripted(rules []Rule) *Scripted {
	return &Scripted{rules: rules}
}

// find returns the first matching rule's reply for the signature.
func (s *Scripted) find(sig Signature, parts ...string) (map[string]string, error) {
	haystack := strings.ToLower(strings.Join(parts, "\n"))
	for _, r := range s.rules {
		if r.matches(sig, haystack) {
			if r.Fail {
				return nil, &GatewayError{Signature: sig, Err: errors.New("scripted failure")}
			}
			return r.Reply, nil
		}
	}
	return nil, nil
}

func (s *Scripted) Route(ctx context.Context, req RouteRequest) (RouteReply, error) {
	reply, err := s.find(SigRouter, req.Question)
	if err != nil {
		return RouteReply{}, err
	}
	if reply == nil {
		return RouteReply{Reasoning: "no rule matched", Route: "hybrid"}, nil
	}
	return RouteReply{Reasoning: reply["reasoning"], Route: reply["route"]}, nil
}

func (s *Scripted) GenerateQuery(ctx context.Context, req QueryRequest) (QueryReply, error) {
	reply, err := s.find(SigQuerySynthesis, req.Question, req.Context)
	if err != nil {
		return QueryReply{}, err
	}
	if reply == nil {
		return QueryReply{SQL: "SELECT COUNT(*) FROM Orders"}, nil
	}
	return QueryReply{SQL: CleanSQL(reply["sql"])}, nil
}

func (s *Scripted) RefineQuery(ctx context.Context, req RefineRequest) (RefineReply, error) {
	reply, err := s.find(SigQueryRefinement, req.Question, req.FailedSQL, req.ErrorMessage)
	if err != nil {
		return RefineReply{}, err
	}
	if reply == nil {
		// No scripted fix: echo the failed query back unchanged.
		return RefineReply{SQL: req.FailedSQL}, nil
	}
	return RefineReply{SQL: CleanSQL(reply["sql"])}, nil
}

func (s *Scripted) ExtractConstraints(ctx context.Context, req ConstraintRequest) (ConstraintReply, error) {
	reply, err := s.find(SigConstraintExtraction, req.Question, req.DocContext)
	if err != nil {
		return ConstraintReply{}, err
	}
	if reply == nil {
		return ConstraintReply{}, nil
	}
	return ConstraintReply{Constraints: reply["constraints"]}, nil
}

func (s *Scripted) SynthesizeAnswer(ctx context.Context, req AnswerRequest) (AnswerReply, error) {
	reply, err := s.find(SigAnswerSynthesis, req.Question, req.FormatHint, req.DocContext, req.SQLResult)
	if err != nil {
		return AnswerReply{}, err
	}
	if reply == nil {
		return AnswerReply{Reasoning: "No rule matched the question.", Answer: ""}, nil
	}
	return AnswerReply{Reasoning: reply["reasoning"], Answer: reply["answer"]}, nil
}

// #endregion

// #region default-rules

// DefaultRules covers the Northwind demo corpus so the copilot can run
// offline end to end. Mirrors the behavior of the hosted model closely
// enough for smoke runs; real runs use the OpenAI-compatible client.
func DefaultRules() []Rule {
	return []Rule{
		{
			Signature: SigRouter,
			Contains:  []string{"policy"},
			Reply:     map[string]string{"reasoning": "Policy questions are answered from documents.", "route": "document"},
		},
		{
			Signature: SigRouter,
			Contains:  []string{"revenue", "campaign"},
			Reply:     map[string]string{"reasoning": "Needs campaign dates from docs and revenue from the database.", "route": "hybrid"},
		},
		{
			Signature: SigRouter,
			Contains:  []string{"revenue"},
			Reply:     map[string]string{"reasoning": "Pure numerical query.", "route": "query"},
		},
		{
			Signature: SigRouter,
			Contains:  []string{"top"},
			Reply:     map[string]string{"reasoning": "Ranking query against the database.", "route": "query"},
		},
		{
			Signature: SigQuerySynthesis,
			Contains:  []string{"top 3"},
			Reply:     map[string]string{"sql": `SELECT p.ProductName AS product, SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)) AS revenue FROM Products p JOIN "Order Details" od ON p.ProductID = od.ProductID GROUP BY p.ProductName ORDER BY revenue DESC LIMIT 3`},
		},
		{
			Signature: SigQuerySynthesis,
			Contains:  []string{"beverages", "revenue"},
			Reply:     map[string]string{"sql": `SELECT SUM(od.UnitPrice * od.Quantity * (1 - od.Discount)) AS revenue FROM Categories c JOIN Products p ON c.CategoryID = p.CategoryID JOIN "Order Details" od ON p.ProductID = od.ProductID JOIN Orders o ON od.OrderID = o.OrderID WHERE c.CategoryName = 'Beverages'`},
		},
		{
			Signature: SigQueryRefinement,
			Contains:  []string{"order details"},
			Reply:     map[string]string{"sql": `SELECT COUNT(*) FROM "Order Details"`},
		},
		{
			Signature: SigConstraintExtraction,
			Contains:  []string{"summer"},
			Reply:     map[string]string{"constraints": "date_range: 1997-06-01 to 1997-06-30\ncategory: Beverages"},
		},
		{
			Signature: SigConstraintExtraction,
			Contains:  []string{"winter"},
			Reply:     map[string]string{"constraints": "date_range: 1997-12-01 to 1997-12-31\ncategory: Dairy Products"},
		},
		{
			Signature: SigAnswerSynthesis,
			Contains:  []string{"int", "return"},
			Reply:     map[string]string{"reasoning": "The product policy grants a 14-day return window for unopened beverages.", "answer": "14"},
		},
	}
}

// #endregion
