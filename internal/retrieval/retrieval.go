package retrieval

import (
	"context"
	"math"
	"sort"
)

// #region retriever
// Retriever answers lexical searches over a fixed document corpus using
// TF-IDF weighted cosine similarity. The index is built once and read-only
// afterwards, so Search is safe for concurrent use.
type Retriever struct {
	cfg    Config
	chunks []Chunk
	vecs   []map[string]float64 // per-chunk term weight vectors, unit length
	idf    map[string]float64
}

// NewRetriever indexes the given corpus chunks.
func NewRetriever(chunks []Chunk, cfg Config) *Retriever {
	r := &Retriever{cfg: cfg, chunks: chunks}
	r.buildIndex()
	return r
}

// Chunks returns the number of indexed chunks.
func (r *Retriever) Chunks() int {
	return len(r.chunks)
}

// #endregion retriever

// #region index
func (r *Retriever) buildIndex() {
	df := make(map[string]int)
	counts := make([]map[string]int, len(r.chunks))
	for i, c := range r.chunks {
		counts[i] = termCounts(c.Text)
		for term := range counts[i] {
			df[term]++
		}
	}

	n := float64(len(r.chunks))
	r.idf = make(map[string]float64, len(df))
	for term, d := range df {
		r.idf[term] = math.Log(n/float64(1+d)) + 1
	}

	r.vecs = make([]map[string]float64, len(r.chunks))
	for i, tc := range counts {
		r.vecs[i] = normalize(weigh(tc, r.idf))
	}
}

// weigh converts raw term counts into TF-IDF weights. Terms absent from the
// corpus vocabulary get zero weight.
func weigh(tc map[string]int, idf map[string]float64) map[string]float64 {
	vec := make(map[string]float64, len(tc))
	for term, count := range tc {
		w, ok := idf[term]
		if !ok {
			continue
		}
		vec[term] = float64(count) * w
	}
	return vec
}

func normalize(vec map[string]float64) map[string]float64 {
	var sum float64
	for _, w := range vec {
		sum += w * w
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	for term, w := range vec {
		vec[term] = w / norm
	}
	return vec
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, w := range a {
		sum += w * b[term]
	}
	return sum
}

// #endregion index

// #region search
// Search returns up to k chunks ranked by descending similarity to text.
// Ties keep corpus insertion order (stable sort). Chunks with zero
// similarity are never returned. The context is accepted for interface
// parity with remote retrievers; the lexical index never blocks.
func (r *Retriever) Search(_ context.Context, text string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = r.cfg.TopK
	}

	qvec := normalize(weigh(termCounts(text), r.idf))
	if len(qvec) == 0 {
		return nil, nil
	}

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored
	for i, vec := range r.vecs {
		if s := dot(qvec, vec); s > 0 {
			hits = append(hits, scored{idx: i, score: s})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]Chunk, len(hits))
	for i, h := range hits {
		c := r.chunks[h.idx]
		c.Score = h.score
		out[i] = c
	}
	return out, nil
}

// #endregion search
