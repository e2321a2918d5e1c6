package agent

// #region imports
import (
	"fmt"
	"math"
	"strings"
)

// #endregion

// #region verdict

// Verdict is the output validator's decision. Rejection is non-fatal; the
// orchestrator may re-synthesize once with Reason appended as feedback.
type Verdict struct {
	Accept bool
	Reason string
}

func accept() Verdict {
	return Verdict{Accept: true}
}

func reject(format string, args ...any) Verdict {
	return Verdict{Reason: fmt.Sprintf(format, args...)}
}

// #endregion

// #region validate

// maxExplanationSentences bounds the explanation field of every record.
const maxExplanationSentences = 2

// Validate checks a candidate answer against the output contract:
// value type matches the format hint exactly, explanation stays within the
// sentence budget, and citations are non-empty whenever evidence was used.
func Validate(value any, hint FormatHint, explanation string, citations []string, needCitations bool) Verdict {
	if v := validateType(value, hint); !v.Accept {
		return v
	}
	if n := countSentences(explanation); n > maxExplanationSentences {
		return reject("explanation has %d sentences, limit is %d", n, maxExplanationSentences)
	}
	if needCitations && len(citations) == 0 {
		return reject("citations required: the answer used retrieved documents or query results")
	}
	for _, c := range citations {
		if c == "" {
			return reject("citations must not contain empty strings")
		}
	}
	return accept()
}

func validateType(value any, hint FormatHint) Verdict {
	switch hint {
	case FormatInt:
		switch n := value.(type) {
		case int, int32, int64:
			return accept()
		case float64:
			// Integer-valued floats satisfy int only with a zero fraction.
			if n == math.Trunc(n) {
				return accept()
			}
			return reject("value %v has a fractional part, int required", n)
		}
		return reject("value type %T does not match hint int", value)
	case FormatFloat:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return accept()
		}
		return reject("value type %T does not match hint float", value)
	case FormatString:
		if _, ok := value.(string); ok {
			return accept()
		}
		return reject("value type %T does not match hint string", value)
	case FormatDict:
		if _, ok := value.(map[string]any); ok {
			return accept()
		}
		return reject("value type %T does not match hint dict", value)
	case FormatList:
		if _, ok := value.([]any); ok {
			return accept()
		}
		return reject("value type %T does not match hint list", value)
	}
	return reject("unknown format hint %q", hint)
}

// #endregion

// #region sentences

// countSentences counts sentence terminators, treating runs like "?!" as
// one boundary. Trailing text without a terminator counts as a sentence.
func countSentences(text string) int {
	text = strings.TrimSpace(text)
	if text == "" {
		return 0
	}
	count := 0
	inRun := false
	tail := false
	for _, r := range text {
		switch r {
		case '.', '!', '?':
			if !inRun {
				count++
				inRun = true
			}
			tail = false
		default:
			inRun = false
			if !strings.ContainsRune(" \t\n", r) {
				tail = true
			}
		}
	}
	if tail {
		count++
	}
	return count
}

// #endregion
