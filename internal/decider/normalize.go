package decider

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var trailingComma = regexp.MustCompile(`,\s*([}\]])`)

var smartQuotes = strings.NewReplacer(
	"“", `"`, // left double
	"”", `"`, // right double
	"‘", "'", // left single
	"’", "'", // right single
)

// NormalizeResponse strips the decoration models wrap JSON in: code
// fences with optional language tags, smart quotes, and trailing commas
// before a closing brace or bracket.
func NormalizeResponse(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	s = strings.TrimSpace(s)
	s = smartQuotes.Replace(s)
	s = trailingComma.ReplaceAllString(s, "$1")
	return s
}

// DecodeOutcome parses a normalized response into an Outcome. Anything
// that is not a JSON object with a usable decision collapses to the
// fallback: a ragged model response must degrade to the safe default,
// never to a stuck transaction.
func DecodeOutcome(raw string, fallback Outcome) Outcome {
	var data map[string]any
	if err := json.Unmarshal([]byte(NormalizeResponse(raw)), &data); err != nil {
		return fallback
	}

	out := Outcome{Fields: make(map[string]string)}
	for k, v := range data {
		var s string
		switch val := v.(type) {
		case string:
			s = val
		case json.Number:
			s = val.String()
		case float64:
			s = strings.TrimSuffix(fmt.Sprintf("%g", val), ".0")
		case bool:
			s = fmt.Sprintf("%t", val)
		default:
			continue // nested structures have no field mapping
		}
		if strings.EqualFold(k, "decision") {
			out.Decision = strings.ToUpper(strings.TrimSpace(s))
			continue
		}
		out.Fields[k] = s
	}
	if out.Decision == "" {
		return fallback
	}
	return out
}
