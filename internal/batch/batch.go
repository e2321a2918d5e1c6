package batch

// #region imports
import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
)

// #endregion

// #region records

// InputRecord is one line of the batch input file.
type InputRecord struct {
	ID         string `json:"id"`
	Question   string `json:"question"`
	FormatHint string `json:"format_hint"`
}

// Summary aggregates a completed batch run.
type Summary struct {
	RunID         string
	Total         int
	HardFailures  int // questions that got a minimal record
	WithSQL       int
	AvgConfidence float64
	Elapsed       time.Duration
}

// #endregion

// #region io

// ReadQuestions parses line-delimited JSON questions in input order.
func ReadQuestions(r io.Reader) ([]agent.Question, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var qs []agent.Question
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var rec InputRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("input line %d: %w", line, err)
		}
		if rec.ID == "" {
			return nil, fmt.Errorf("input line %d: missing id", line)
		}
		qs = append(qs, agent.Question{
			ID:         rec.ID,
			Text:       rec.Question,
			FormatHint: agent.ParseFormatHint(rec.FormatHint),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return qs, nil
}

// WriteRecords emits one JSON line per record, preserving input order.
func WriteRecords(w io.Writer, recs []agent.OutputRecord) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for _, rec := range recs {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("write record %s: %w", rec.ID, err)
		}
	}
	return bw.Flush()
}

// #endregion io

// #region runner

// Runner processes a batch of questions through one shared orchestrator.
// Questions are independent; each gets its own AgentState, so they run in
// parallel worker units with no shared mutable state.
type Runner struct {
	orch    *agent.Orchestrator
	workers int
}

// NewRunner creates a batch runner with the given parallelism.
func NewRunner(orch *agent.Orchestrator, workers int) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{orch: orch, workers: workers}
}

// Run answers every question and returns records in input order. A
// question's hard failure is isolated as its own minimal record; nothing
// aborts the rest of the batch. When ctx expires, remaining unprocessed
// questions finalize as minimal records and finished records are untouched.
func (r *Runner) Run(ctx context.Context, qs []agent.Question) ([]agent.OutputRecord, Summary) {
	start := time.Now()
	runID := uuid.New().String()
	log.Printf("[BATCH] run %s: %d questions, %d workers", runID, len(qs), r.workers)

	records := make([]agent.OutputRecord, len(qs))
	g := new(errgroup.Group)
	g.SetLimit(r.workers)

	for i, q := range qs {
		i, q := i, q
		g.Go(func() error {
			records[i] = r.answerOne(ctx, q)
			return nil
		})
	}
	g.Wait()

	sum := Summary{RunID: runID, Total: len(qs), Elapsed: time.Since(start)}
	var confSum float64
	for _, rec := range records {
		confSum += rec.Confidence
		if rec.SQL != "" {
			sum.WithSQL++
		}
		if rec.FinalAnswer == nil {
			sum.HardFailures++
		}
	}
	if len(records) > 0 {
		sum.AvgConfidence = confSum / float64(len(records))
	}
	log.Printf("[BATCH] run %s done in %s: avg_confidence=%.2f sql=%d/%d hard_failures=%d",
		runID, sum.Elapsed.Round(time.Millisecond), sum.AvgConfidence, sum.WithSQL, sum.Total, sum.HardFailures)
	return records, sum
}

// answerOne isolates a single question: router failures, deadline expiry,
// and panics all degrade to a minimal record.
func (r *Runner) answerOne(ctx context.Context, q agent.Question) (rec agent.OutputRecord) {
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[BATCH] %s panic: %v", q.ID, p)
			rec = agent.MinimalRecord(q.ID, "internal error")
		}
	}()

	if ctx.Err() != nil {
		return agent.MinimalRecord(q.ID, "batch deadline exceeded")
	}

	rec, err := r.orch.Answer(ctx, q)
	if err != nil {
		log.Printf("[BATCH] %s hard failure: %v", q.ID, err)
	}
	return rec
}

// #endregion runner
