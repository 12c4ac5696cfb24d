package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// -------------------- Parse Tests --------------------

func TestParse_FinalAnswer(t *testing.T) {
	out := Parse("Thought: done\nFinal Answer: 42")
	assert.Equal(t, FinalAnswer, out.Kind)
	assert.Equal(t, "42", out.Answer)
}

func TestParse_FinalAnswerGreedyCapture(t *testing.T) {
	// Trailing boilerplate after the marker belongs to the answer.
	out := Parse("Thought: done\nFinal Answer: 42\nsource: conversation history")
	assert.Equal(t, FinalAnswer, out.Kind)
	assert.Equal(t, "42\nsource: conversation history", out.Answer)
}

func TestParse_FinalAnswerPriorityOverAction(t *testing.T) {
	// An output carrying both directives terminates; it is never an action.
	raw := "Thought: wrapping up\nAction: rag_search\nAction Input: {\"query\": \"x\"}\nFinal Answer: done"
	out := Parse(raw)
	assert.Equal(t, FinalAnswer, out.Kind)
	assert.Equal(t, "done", out.Answer)
	assert.Empty(t, out.Tool)
}

func TestParse_Action(t *testing.T) {
	raw := "Thought: need the docs\nAction: rag_search\nAction Input: {\"query\": \"what is RAG\"}"
	out := Parse(raw)
	assert.Equal(t, Action, out.Kind)
	assert.Equal(t, "rag_search", out.Tool)
	assert.Equal(t, map[string]any{"query": "what is RAG"}, out.Params)
}

func TestParse_ActionWithNestedInput(t *testing.T) {
	raw := `Action: search
Action Input: {"filter": {"lang": "en", "depth": 2}, "query": "go"}`
	out := Parse(raw)
	assert.Equal(t, Action, out.Kind)
	assert.Equal(t, "go", out.Params["query"])
	filter, ok := out.Params["filter"].(map[string]any)
	assert.True(t, ok)
	assert.Equal(t, "en", filter["lang"])
}

func TestParse_ActionWithoutInputBlock(t *testing.T) {
	out := Parse("Thought: listing\nAction: list_documents")
	assert.Equal(t, Action, out.Kind)
	assert.Equal(t, "list_documents", out.Tool)
	assert.Empty(t, out.Params)
	assert.NotNil(t, out.Params)
}

func TestParse_MalformedInputFallsBackToPairScan(t *testing.T) {
	// Single quotes and a bare value break strict JSON but the pair scan
	// still salvages typed values.
	raw := `Action: search
Action Input: {"query": "rust", "top_k": 3, "deep": true, broken: 'x'}`
	out := Parse(raw)
	assert.Equal(t, Action, out.Kind)
	assert.Equal(t, "rust", out.Params["query"])
	assert.Equal(t, 3, out.Params["top_k"])
	assert.Equal(t, true, out.Params["deep"])
}

func TestParse_FloatParam(t *testing.T) {
	raw := `Action: search
Action Input: {"threshold": 0.75, junk}`
	out := Parse(raw)
	assert.Equal(t, 0.75, out.Params["threshold"])
}

func TestParse_NoDirective(t *testing.T) {
	out := Parse("I am not sure what to do here.")
	assert.Equal(t, NoAction, out.Kind)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "action", Action.String())
	assert.Equal(t, "final_answer", FinalAnswer.String())
	assert.Equal(t, "no_action", NoAction.String())
}

// -------------------- ExtractObject Tests --------------------

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		ok   bool
	}{
		{"flat", `{"a": 1} trailing`, `{"a": 1}`, true},
		{"nested", `{"a": {"b": {"c": 1}}} rest`, `{"a": {"b": {"c": 1}}}`, true},
		{"unbalanced", `{"a": {"b": 1}`, "", false},
		{"no brace prefix", `text {"a": 1}`, "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractObject(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

// -------------------- Thought Tests --------------------

func TestThought(t *testing.T) {
	assert.Equal(t, "need the docs",
		Thought("Thought: need the docs\nAction: rag_search\nAction Input: {}"))
	assert.Equal(t, "done",
		Thought("Thought: done\nFinal Answer: 42"))
	assert.Equal(t, "free text without markers",
		Thought("  free text without markers \n"))
}
