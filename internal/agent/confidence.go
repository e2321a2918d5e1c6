package agent

import (
	"math"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/retrieval"
)

// #region confidence

// Confidence scores the terminal state:
//
//	base × (0.5 + 0.5 × avgRetrieval) × sqlMultiplier × 0.9^repairs
//
// clamped to [0,1]. It is a pure function of the terminal state, computed
// exactly once at finalization — never accumulated mid-pipeline.
func Confidence(s *State) float64 {
	base := 1.0
	switch {
	case s.FallbackUsed || s.DoubleRejected:
		base = 0.3
	case s.Route.Path == PathDocument && len(s.Chunks) == 0:
		base = 0.5
	}

	avg := 0.0
	if used := s.UsedChunks(); len(used) > 0 {
		var sum float64
		for _, c := range used {
			sum += c.Score
		}
		avg = sum / float64(len(used))
	}
	docFactor := 0.5 + 0.5*avg

	sqlMultiplier := 1.0
	if s.RepairsExhausted {
		sqlMultiplier = 0.6
	}

	conf := base * docFactor * sqlMultiplier * math.Pow(0.9, float64(s.Repairs))
	return math.Min(1, math.Max(0, conf))
}

// #endregion

// #region zero-value

// ZeroValue returns the type-appropriate empty literal for a format hint,
// used when synthesis cannot produce a coercible answer.
func ZeroValue(hint FormatHint) any {
	switch hint {
	case FormatInt:
		return 0
	case FormatFloat:
		return 0.0
	case FormatDict:
		return map[string]any{}
	case FormatList:
		return []any{}
	default:
		return ""
	}
}

// #endregion

// #region citations

// BuildCitations assembles the citation list: one "{source}::{chunk}" per
// chunk, then one entry per referenced table, de-duplicated and
// insertion-ordered. Empty strings never appear.
func BuildCitations(chunks []retrieval.Chunk, tables []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(ref string) {
		if ref == "" || ref == "::" || seen[ref] {
			return
		}
		seen[ref] = true
		out = append(out, ref)
	}
	for _, c := range chunks {
		add(c.Ref())
	}
	for _, t := range tables {
		add(t)
	}
	return out
}

// #endregion
