package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/warehouse"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the Northwind SQLite database")
	docsDir := flag.String("docs", "", "document corpus directory")
	jsonOut := flag.Bool("json", false, "output as JSON instead of text")
	flag.Parse()

	if *dbPath == "" && *docsDir == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db northwind.sqlite [--docs dir] [--json]")
		os.Exit(2)
	}

	report := inspectReport{}
	if *dbPath != "" {
		tables, err := inspectWarehouse(*dbPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect warehouse: %v\n", err)
			os.Exit(1)
		}
		report.Tables = tables
	}
	if *docsDir != "" {
		sources, err := inspectCorpus(*docsDir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "inspect corpus: %v\n", err)
			os.Exit(1)
		}
		report.Sources = sources
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
			os.Exit(1)
		}
		return
	}
	printReport(report)
}

// #endregion main

// #region report

type tableReport struct {
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    int64    `json:"rows"`
}

type sourceReport struct {
	SourceID string `json:"source_id"`
	Chunks   int    `json:"chunks"`
	Bytes    int    `json:"bytes"`
}

type inspectReport struct {
	Tables  []tableReport  `json:"tables,omitempty"`
	Sources []sourceReport `json:"sources,omitempty"`
}

// #endregion report

// #region warehouse

func inspectWarehouse(dbPath string) ([]tableReport, error) {
	wh, err := warehouse.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer wh.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var out []tableReport
	for _, t := range wh.IntrospectSchema() {
		cols := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			cols[i] = c.Name
		}
		rep := tableReport{Name: t.Name, Columns: cols, Rows: -1}

		rows, err := wh.Execute(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM "%s"`, t.Name))
		if err == nil && !rows.Empty() {
			if n, ok := asInt64(rows.Values[0][0]); ok {
				rep.Rows = n
			}
		}
		out = append(out, rep)
	}
	return out, nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case float64:
		return int64(n), true
	}
	return 0, false
}

// #endregion warehouse

// #region corpus

func inspectCorpus(dir string) ([]sourceReport, error) {
	chunks, err := retrieval.LoadCorpus(dir, retrieval.DefaultConfig())
	if err != nil {
		return nil, err
	}

	var out []sourceReport
	idx := map[string]int{}
	for _, c := range chunks {
		i, ok := idx[c.SourceID]
		if !ok {
			i = len(out)
			idx[c.SourceID] = i
			out = append(out, sourceReport{SourceID: c.SourceID})
		}
		out[i].Chunks++
		out[i].Bytes += len(c.Text)
	}
	return out, nil
}

// #endregion corpus

// #region print

func printReport(r inspectReport) {
	if len(r.Tables) > 0 {
		fmt.Println("Warehouse tables:")
		for _, t := range r.Tables {
			rows := "?"
			if t.Rows >= 0 {
				rows = fmt.Sprintf("%d", t.Rows)
			}
			fmt.Printf("  %-20s %6s rows  (%s)\n", t.Name, rows, strings.Join(t.Columns, ", "))
		}
	}
	if len(r.Sources) > 0 {
		fmt.Println("Corpus sources:")
		for _, s := range r.Sources {
			fmt.Printf("  %-20s %3d chunks  %6d bytes\n", s.SourceID, s.Chunks, s.Bytes)
		}
	}
}

// #endregion print
