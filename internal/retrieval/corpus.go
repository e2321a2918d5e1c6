package retrieval

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// #region load
// LoadCorpus reads every markdown file under dir and splits each into
// paragraph chunks. Files are visited in name order and chunks keep their
// in-file order, so corpus insertion order is stable across runs.
func LoadCorpus(dir string, cfg Config) ([]Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read docs dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var chunks []Chunk
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read doc %s: %w", name, err)
		}
		stem := strings.TrimSuffix(name, ".md")
		for i, para := range splitParagraphs(string(data)) {
			if cfg.MaxChunkLen > 0 && len(para) > cfg.MaxChunkLen {
				para = para[:cfg.MaxChunkLen]
			}
			chunks = append(chunks, Chunk{
				SourceID: stem,
				ChunkID:  fmt.Sprintf("chunk%d", i),
				Text:     para,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, fmt.Errorf("no document chunks found under %s", dir)
	}
	return chunks, nil
}

// #endregion load

// #region split
// splitParagraphs breaks markdown into chunks at blank lines and headings.
func splitParagraphs(content string) []string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	var paras []string
	var cur []string
	flush := func() {
		joined := strings.TrimSpace(strings.Join(cur, "\n"))
		if joined != "" {
			paras = append(paras, joined)
		}
		cur = cur[:0]
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			flush()
			continue
		}
		if strings.HasPrefix(trimmed, "#") && len(cur) > 0 {
			flush()
		}
		cur = append(cur, line)
	}
	flush()
	return paras
}

// #endregion split
