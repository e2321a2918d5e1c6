package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// #region config

// Config holds connection parameters for an OpenAI-compatible chat backend
// (Ollama serves this API locally).
type Config struct {
	BaseURL     string  // e.g. http://localhost:11434/v1
	APIKey      string  // unused by Ollama but required by the client
	Model       string  // e.g. phi3.5:3.8b-mini-instruct-q4_K_M
	Temperature float32 // low temperature keeps structured output stable
}

// DefaultConfig returns parameters for a local Ollama endpoint.
func DefaultConfig() Config {
	return Config{
		BaseURL:     "http://localhost:11434/v1",
		APIKey:      "ollama",
		Model:       "phi3.5:3.8b-mini-instruct-q4_K_M",
		Temperature: 0.1,
	}
}

// #endregion

// #region client

// Client implements Gateway over an OpenAI-compatible chat completion API.
type Client struct {
	api   *openai.Client
	model string
	temp  float32
}

// NewClient builds a Gateway client from config.
func NewClient(cfg Config) *Client {
	apiCfg := openai.DefaultConfig(cfg.APIKey)
	apiCfg.BaseURL = cfg.BaseURL
	return &Client{
		api:   openai.NewClientWithConfig(apiCfg),
		model: cfg.Model,
		temp:  cfg.Temperature,
	}
}

// Ping verifies the backend is reachable. Used at startup so an unreachable
// collaborator fails the run before any question is processed.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.api.ListModels(ctx); err != nil {
		return fmt.Errorf("llm backend unreachable: %w", err)
	}
	return nil
}

// #endregion

// #region completion

// complete sends one prompt and decodes the JSON object the prompt demands.
func (c *Client) complete(ctx context.Context, sig Signature, prompt string, out any) error {
	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temp,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return &GatewayError{Signature: sig, Err: err}
	}
	if len(resp.Choices) == 0 {
		return &GatewayError{Signature: sig, Err: fmt.Errorf("no choices returned")}
	}
	raw := ExtractJSON(resp.Choices[0].Message.Content)
	if raw == "" {
		return &GatewayError{Signature: sig, Err: fmt.Errorf("no JSON object in reply")}
	}
	if err := json.Unmarshal([]byte(raw), out); err != nil {
		return &GatewayError{Signature: sig, Err: fmt.Errorf("decode reply: %w", err)}
	}
	return nil
}

const systemPrompt = "You are a retail analytics assistant. " +
	"Always respond with a single valid JSON object and nothing else."

// #endregion

// #region signature-methods

// Route classifies a question into a processing path.
func (c *Client) Route(ctx context.Context, req RouteRequest) (RouteReply, error) {
	prompt := fmt.Sprintf(`Classify the question into exactly one route:
- "document": answered from policy/marketing documents only (policies, definitions, dates)
- "query": needs database queries only (pure numerical analysis)
- "hybrid": needs documents for context/constraints AND the database for numbers

Question: %s

Respond as {"reasoning": "...", "route": "document|query|hybrid"}`, req.Question)

	var body struct {
		Reasoning string `json:"reasoning"`
		Route     string `json:"route"`
	}
	if err := c.complete(ctx, SigRouter, prompt, &body); err != nil {
		return RouteReply{}, err
	}
	return RouteReply{Reasoning: body.Reasoning, Route: body.Route}, nil
}

// GenerateQuery produces a SQLite query for the question.
func (c *Client) GenerateQuery(ctx context.Context, req QueryRequest) (QueryReply, error) {
	extra := req.Context
	if extra == "" {
		extra = "No additional context"
	}
	prompt := fmt.Sprintf(`Write one valid SQLite SELECT query answering the question.
Rules:
- Use exact table names from the schema; quote names containing spaces, e.g. "Order Details"
- Revenue formula: SUM(UnitPrice * Quantity * (1 - Discount))
- Use proper JOINs

Schema:
%s

Context:
%s

Question: %s

Respond as {"sql": "..."}`, req.Schema, extra, req.Question)

	var body struct {
		SQL string `json:"sql"`
	}
	if err := c.complete(ctx, SigQuerySynthesis, prompt, &body); err != nil {
		return QueryReply{}, err
	}
	return QueryReply{SQL: CleanSQL(body.SQL)}, nil
}

// RefineQuery corrects a failed query using the literal error message.
func (c *Client) RefineQuery(ctx context.Context, req RefineRequest) (RefineReply, error) {
	prompt := fmt.Sprintf(`This SQLite query failed. Fix it.

Question: %s

Failed query:
%s

Error:
%s

Schema:
%s

Respond as {"sql": "..."}`, req.Question, req.FailedSQL, req.ErrorMessage, req.Schema)

	var body struct {
		SQL string `json:"sql"`
	}
	if err := c.complete(ctx, SigQueryRefinement, prompt, &body); err != nil {
		return RefineReply{}, err
	}
	return RefineReply{SQL: CleanSQL(body.SQL)}, nil
}

// ExtractConstraints pulls structured constraints from document context.
func (c *Client) ExtractConstraints(ctx context.Context, req ConstraintRequest) (ConstraintReply, error) {
	prompt := fmt.Sprintf(`Extract constraints useful for building a SQL query.
Report one per line as "kind: value" where kind is one of
date_range, category, formula, other. Report nothing if no constraint applies.

Question: %s

Documents:
%s

Respond as {"constraints": "..."}`, req.Question, req.DocContext)

	var body struct {
		Constraints string `json:"constraints"`
	}
	if err := c.complete(ctx, SigConstraintExtraction, prompt, &body); err != nil {
		return ConstraintReply{}, err
	}
	return ConstraintReply{Constraints: body.Constraints}, nil
}

// SynthesizeAnswer produces the final answer text for a format hint.
func (c *Client) SynthesizeAnswer(ctx context.Context, req AnswerRequest) (AnswerReply, error) {
	docCtx := req.DocContext
	if docCtx == "" {
		docCtx = "No document context"
	}
	sqlRes := req.SQLResult
	if sqlRes == "" {
		sqlRes = "No SQL results"
	}
	feedback := ""
	if req.Feedback != "" {
		feedback = "\nPrevious answer was rejected: " + req.Feedback
	}
	prompt := fmt.Sprintf(`Answer the question. The answer MUST match the format hint exactly:
- int: plain integer
- float: number rounded to 2 decimals
- string: short text
- dict: one JSON object
- list: JSON array of objects
Keep the explanation to at most 2 sentences.%s

Question: %s
Format hint: %s

Documents:
%s

SQL result:
%s

Respond as {"reasoning": "...", "answer": "..."}`, feedback, req.Question, req.FormatHint, docCtx, sqlRes)

	var body struct {
		Reasoning string `json:"reasoning"`
		Answer    string `json:"answer"`
	}
	if err := c.complete(ctx, SigAnswerSynthesis, prompt, &body); err != nil {
		return AnswerReply{}, err
	}
	return AnswerReply{Reasoning: body.Reasoning, Answer: body.Answer}, nil
}

// #endregion

// #region parsing-helpers

// ExtractJSON strips markdown fences and returns the first JSON object or
// array found in text, or "" when none is present.
func ExtractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		rest = strings.TrimPrefix(rest, "json")
		if j := strings.Index(rest, "```"); j >= 0 {
			text = strings.TrimSpace(rest[:j])
		} else {
			text = strings.TrimSpace(rest)
		}
	}
	for _, pair := range [2][2]byte{{'{', '}'}, {'[', ']'}} {
		start := strings.IndexByte(text, pair[0])
		end := strings.LastIndexByte(text, pair[1])
		if start >= 0 && end > start {
			candidate := text[start : end+1]
			if json.Valid([]byte(candidate)) {
				return candidate
			}
		}
	}
	return ""
}

// CleanSQL normalizes model-produced SQL: fences, labels, trailing semicolon.
func CleanSQL(sql string) string {
	sql = strings.TrimSpace(sql)
	sql = strings.TrimPrefix(sql, "```sql")
	sql = strings.TrimPrefix(sql, "```")
	sql = strings.TrimSuffix(sql, "```")
	sql = strings.TrimSpace(sql)
	if lower := strings.ToLower(sql); strings.HasPrefix(lower, "sql:") {
		sql = strings.TrimSpace(sql[4:])
	}
	return strings.TrimSuffix(sql, ";")
}

// #endregion
