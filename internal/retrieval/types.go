package retrieval

import "strings"

// #region config
// Config holds limits for lexical retrieval.
type Config struct {
	TopK        int // max chunks returned per search
	MaxChunkLen int // max chars per chunk; longer chunks are truncated
}

// DefaultConfig returns sensible retrieval defaults.
func DefaultConfig() Config {
	return Config{
		TopK:        3,
		MaxChunkLen: 2000,
	}
}

// #endregion config

// #region chunk
// Chunk is a retrievable unit of document text with a relevance score.
// Immutable once returned from Search.
type Chunk struct {
	SourceID string // document stem, e.g. "product_policy"
	ChunkID  string // position within the document, e.g. "chunk3"
	Text     string
	Score    float64 // cosine similarity, >= 0
}

// Ref returns the citation form "{source_id}::{chunk_id}".
func (c Chunk) Ref() string {
	return c.SourceID + "::" + c.ChunkID
}

// FormatContext renders chunks as prompt context, one "[ref] text" block
// per chunk in retrieval order.
func FormatContext(chunks []Chunk) string {
	var b strings.Builder
	for i, c := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("[" + c.Ref() + "] " + c.Text)
	}
	return b.String()
}

// #endregion chunk
