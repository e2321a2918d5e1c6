package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON")
	verbose := flag.Bool("v", false, "print every produced record")
	flag.Parse()

	if *fixturePath == "" {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/fixture.json [-v]")
		os.Exit(2)
	}

	f, err := replay.LoadFixture(*fixturePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load fixture: %v\n", err)
		os.Exit(2)
	}
	if f.Description != "" {
		fmt.Printf("fixture: %s\n", f.Description)
	}

	results, summary, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(1)
	}

	for _, r := range results {
		if r.Pass() {
			if *verbose {
				data, _ := json.Marshal(r.Record)
				fmt.Printf("PASS %s %s\n", r.ID, data)
			} else {
				fmt.Printf("PASS %s\n", r.ID)
			}
			continue
		}
		fmt.Printf("FAIL %s\n", r.ID)
		for _, m := range r.Mismatches {
			fmt.Printf("     %s\n", m)
		}
	}

	fmt.Printf("%d/%d passed\n", summary.Passed, summary.Total)
	if summary.Passed != summary.Total {
		os.Exit(1)
	}
}

// #endregion main
