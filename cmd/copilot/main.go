package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/batch"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/planner"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/router"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/sqlgen"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/synth"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/warehouse"
)

// #region main

func main() {
	batchPath := flag.String("batch", "", "path to questions.jsonl")
	outPath := flag.String("out", "outputs.jsonl", "path for output records")
	docsDir := flag.String("docs", envOr("COPILOT_DOCS", "docs"), "document corpus directory")
	dbPath := flag.String("db", envOr("COPILOT_DB", "northwind.sqlite"), "path to the Northwind SQLite database")
	baseURL := flag.String("llm-url", envOr("COPILOT_LLM_URL", ""), "OpenAI-compatible endpoint (default local Ollama)")
	model := flag.String("model", envOr("COPILOT_MODEL", ""), "model name for the endpoint")
	workers := flag.Int("workers", 4, "parallel question workers")
	timeout := flag.Duration("timeout", 60*time.Second, "per-collaborator-call timeout")
	deadline := flag.Duration("deadline", 0, "whole-batch deadline (0 = none)")
	offline := flag.Bool("offline", false, "use the scripted gateway instead of a model backend")
	flag.Parse()

	if *batchPath == "" {
		fmt.Fprintln(os.Stderr, "usage: copilot --batch questions.jsonl --out outputs.jsonl [--docs dir] [--db northwind.sqlite]")
		os.Exit(2)
	}

	gw, err := buildGateway(*offline, *baseURL, *model)
	if err != nil {
		log.Fatalf("gateway: %v", err)
	}

	chunks, err := retrieval.LoadCorpus(*docsDir, retrieval.DefaultConfig())
	if err != nil {
		log.Fatalf("load corpus: %v", err)
	}
	retriever := retrieval.NewRetriever(chunks, retrieval.DefaultConfig())

	wh, err := warehouse.Open(*dbPath)
	if err != nil {
		log.Fatalf("open warehouse: %v", err)
	}
	defer wh.Close()

	orch := agent.New(agent.Deps{
		Router:    router.New(gw),
		Retriever: retriever,
		Planner:   planner.New(gw),
		Queries:   sqlgen.New(gw),
		Executor:  wh,
		Synth:     synth.New(gw),
	}, agent.Config{
		Schema:      wh.CompactSchema(),
		StepTimeout: *timeout,
	})

	in, err := os.Open(*batchPath)
	if err != nil {
		log.Fatalf("open batch input: %v", err)
	}
	qs, err := batch.ReadQuestions(in)
	in.Close()
	if err != nil {
		log.Fatalf("read questions: %v", err)
	}

	ctx := context.Background()
	if *deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *deadline)
		defer cancel()
	}

	records, sum := batch.NewRunner(orch, *workers).Run(ctx, qs)

	out, err := os.Create(*outPath)
	if err != nil {
		log.Fatalf("create output: %v", err)
	}
	defer out.Close()
	if err := batch.WriteRecords(out, records); err != nil {
		log.Fatalf("write records: %v", err)
	}

	fmt.Printf("run %s: %d records -> %s (avg confidence %.2f, sql %d, hard failures %d)\n",
		sum.RunID, sum.Total, *outPath, sum.AvgConfidence, sum.WithSQL, sum.HardFailures)
}

// #endregion main

// #region gateway

// buildGateway picks the model backend. Live backends are pinged first so
// total collaborator unavailability fails the run before any question is
// processed; per-call serialization protects single-threaded local servers.
func buildGateway(offline bool, baseURL, model string) (llm.Gateway, error) {
	if offline {
		log.Println("[MAIN] offline mode: scripted gateway")
		return llm.NewScripted(llm.DefaultRules()), nil
	}

	cfg := llm.DefaultConfig()
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model != "" {
		cfg.Model = model
	}
	client := llm.NewClient(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Ping(ctx); err != nil {
		return nil, err
	}
	log.Printf("[MAIN] llm backend %s model %s", cfg.BaseURL, cfg.Model)
	return llm.Serialize(client), nil
}

// #endregion gateway

// #region helpers

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// #endregion helpers
