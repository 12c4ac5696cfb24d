// Package protocol implements the textual contract between the reasoning loop
// and the model: the Thought / Action / Action Input / Final Answer grammar
// and a best-effort parser that maps raw model output onto a tagged outcome.
//
// Model output is untrusted free text. The parser therefore never fails hard:
// anything it cannot classify is reported as NoAction so the caller can
// re-prompt instead of aborting the run.
package protocol

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// Markers delimiting the per-iteration output grammar. They are shared by the
// parser, the prompt builder and the streaming answer scanner.
const (
	ThoughtMarker     = "Thought:"
	ActionMarker      = "Action:"
	ActionInputMarker = "Action Input:"
	FinalAnswerMarker = "Final Answer:"
	ObservationMarker = "Observation:"
)

// Kind tags the classification of one model output.
type Kind int

const (
	// NoAction means no recognizable directive was found; the caller should
	// re-prompt with a format correction.
	NoAction Kind = iota
	// Action means the model requested a capability invocation.
	Action
	// FinalAnswer means the model terminated the loop with an answer.
	FinalAnswer
)

// String returns the tag name, mostly for logging and test output.
func (k Kind) String() string {
	switch k {
	case Action:
		return "action"
	case FinalAnswer:
		return "final_answer"
	default:
		return "no_action"
	}
}

// Outcome is the tagged result of parsing one model output.
// Answer is set for FinalAnswer; Tool and Params for Action.
type Outcome struct {
	Kind   Kind
	Answer string
	Tool   string
	Params map[string]any
}

var (
	finalAnswerRe = regexp.MustCompile(`(?s)Final Answer:\s*(.+)`)
	actionRe      = regexp.MustCompile(`Action:\s*(\w+)`)
	stringPairRe  = regexp.MustCompile(`"(\w+)":\s*"([^"]*)"`)
	numberPairRe  = regexp.MustCompile(`"(\w+)":\s*(\d+(?:\.\d+)?)`)
	boolPairRe    = regexp.MustCompile(`(?i)"(\w+)":\s*(true|false)`)
)

// Parse classifies raw model output for one iteration.
//
// Final Answer detection has priority over action detection, and its capture
// is deliberately greedy to end-of-text: trailing boilerplate (citation lines
// etc.) becomes part of the answer. An Action with no parseable Action Input
// block yields an empty parameter map; whether required parameters are missing
// is the capability's concern.
func Parse(raw string) Outcome {
	if m := finalAnswerRe.FindStringSubmatch(raw); m != nil {
		return Outcome{Kind: FinalAnswer, Answer: strings.TrimSpace(m[1])}
	}

	m := actionRe.FindStringSubmatch(raw)
	if m == nil {
		return Outcome{Kind: NoAction}
	}

	return Outcome{Kind: Action, Tool: m[1], Params: parseActionInput(raw)}
}

// parseActionInput locates the Action Input block and decodes it into a
// parameter map, falling back to lenient pair scanning when the block is not
// valid JSON. Absent or unusable input yields an empty map.
func parseActionInput(raw string) map[string]any {
	idx := strings.Index(raw, ActionInputMarker)
	if idx < 0 {
		return map[string]any{}
	}
	remaining := strings.TrimSpace(raw[idx+len(ActionInputMarker):])

	obj, ok := ExtractObject(remaining)
	if !ok {
		return map[string]any{}
	}

	params := map[string]any{}
	if err := json.Unmarshal([]byte(obj), &params); err == nil {
		return params
	}

	// Strict decode failed; scan for individual key/value pairs instead.
	// First match wins a key: strings, then numbers, then booleans.
	params = map[string]any{}
	for _, p := range stringPairRe.FindAllStringSubmatch(obj, -1) {
		if _, exists := params[p[1]]; !exists {
			params[p[1]] = p[2]
		}
	}
	for _, p := range numberPairRe.FindAllStringSubmatch(obj, -1) {
		if _, exists := params[p[1]]; exists {
			continue
		}
		if strings.Contains(p[2], ".") {
			if f, err := strconv.ParseFloat(p[2], 64); err == nil {
				params[p[1]] = f
			}
		} else if n, err := strconv.Atoi(p[2]); err == nil {
			params[p[1]] = n
		}
	}
	for _, p := range boolPairRe.FindAllStringSubmatch(obj, -1) {
		if _, exists := params[p[1]]; !exists {
			params[p[1]] = strings.EqualFold(p[2], "true")
		}
	}
	return params
}

// ExtractObject scans s for a leading JSON-ish object and returns the
// substring through the matching closing brace. It counts brace depth, so
// nested objects are handled without a fixed-depth pattern; braces inside
// string literals are not special-cased. Returns false when s does not start
// with '{' or the braces never balance.
func ExtractObject(s string) (string, bool) {
	if !strings.HasPrefix(s, "{") {
		return "", false
	}
	depth := 0
	for i, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// Thought extracts the thought text: everything between the Thought marker and
// the next grammar marker, or the whole output when no Thought marker exists.
func Thought(raw string) string {
	idx := strings.Index(raw, ThoughtMarker)
	if idx < 0 {
		return strings.TrimSpace(raw)
	}
	rest := raw[idx+len(ThoughtMarker):]
	end := len(rest)
	for _, marker := range []string{ActionMarker, ActionInputMarker, FinalAnswerMarker, ObservationMarker} {
		if i := strings.Index(rest, marker); i >= 0 && i < end {
			end = i
		}
	}
	return strings.TrimSpace(rest[:end])
}
