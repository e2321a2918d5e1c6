package synth

// #region imports
import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/agent"
	"github.com/jayalath-jknr/Retail-analytics-Copilot/internal/llm"
)

// #endregion

// #region patterns

var (
	intPattern   = regexp.MustCompile(`-?\d+`)
	floatPattern = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

// #endregion

// #region coerce

// Coerce converts raw model answer text into the typed value a format hint
// demands. Returns *agent.SynthesisError when no coercion is possible; it
// never fabricates a value.
func Coerce(answer string, hint agent.FormatHint) (any, error) {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return nil, &agent.SynthesisError{Reason: "empty answer"}
	}

	switch hint {
	case agent.FormatInt:
		m := intPattern.FindString(answer)
		if m == "" {
			return nil, &agent.SynthesisError{Reason: "no integer found in answer"}
		}
		n, err := strconv.Atoi(m)
		if err != nil {
			return nil, &agent.SynthesisError{Reason: "integer out of range: " + m}
		}
		return n, nil

	case agent.FormatFloat:
		m := floatPattern.FindString(answer)
		if m == "" {
			return nil, &agent.SynthesisError{Reason: "no number found in answer"}
		}
		f, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return nil, &agent.SynthesisError{Reason: "number out of range: " + m}
		}
		return math.Round(f*100) / 100, nil

	case agent.FormatDict:
		var obj map[string]any
		if err := decodeJSON(answer, &obj); err != nil {
			return nil, &agent.SynthesisError{Reason: "answer is not a JSON object"}
		}
		return obj, nil

	case agent.FormatList:
		var arr []any
		if err := decodeJSON(answer, &arr); err != nil {
			return nil, &agent.SynthesisError{Reason: "answer is not a JSON array"}
		}
		return arr, nil

	default:
		return answer, nil
	}
}

// decodeJSON tolerates code fences and surrounding prose around the JSON
// payload, then decodes strictly into out.
func decodeJSON(answer string, out any) error {
	raw := llm.ExtractJSON(answer)
	if raw == "" {
		raw = answer
	}
	return json.Unmarshal([]byte(raw), out)
}

// #endregion
