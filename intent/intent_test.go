package intent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/raglab/reagent/model"
)

const wellFormedReply = `{
  "category": "knowledge_base",
  "confidence": 0.92,
  "reasoning": "asks about a documented concept",
  "suggested_tools": ["rag_search"],
  "sub_questions": [],
  "needs_realtime": false,
  "keywords": ["RAG", "retrieval"]
}`

func TestClassify_WellFormedReply(t *testing.T) {
	caller := model.NewScriptedCaller(wellFormedReply)
	c := NewClassifier(caller, []string{"rag_search", "web_search"})

	a := c.Classify(context.Background(), "what is RAG", "")

	assert.Equal(t, KnowledgeBase, a.Category)
	assert.Equal(t, 0.92, a.Confidence)
	assert.Equal(t, []string{"rag_search"}, a.SuggestedCapabilities)
	assert.Equal(t, []string{"RAG", "retrieval"}, a.Keywords)
	assert.False(t, a.NeedsRealtime)
}

func TestClassify_CodeFencedReply(t *testing.T) {
	caller := model.NewScriptedCaller("```json\n" + wellFormedReply + "\n```")
	c := NewClassifier(caller, nil)

	a := c.Classify(context.Background(), "what is RAG", "")
	assert.Equal(t, KnowledgeBase, a.Category)
}

func TestClassify_ReplyWithSurroundingProse(t *testing.T) {
	caller := model.NewScriptedCaller("Here is my analysis:\n" + wellFormedReply + "\nHope that helps!")
	c := NewClassifier(caller, nil)

	a := c.Classify(context.Background(), "what is RAG", "")
	assert.Equal(t, KnowledgeBase, a.Category)
}

func TestClassify_ModelFailureFallsBackToMultiStep(t *testing.T) {
	caller := model.NewScriptedCaller()
	caller.FailWith(errors.New("timeout"))
	c := NewClassifier(caller, nil)

	a := c.Classify(context.Background(), "complex question", "")

	assert.Equal(t, MultiStep, a.Category)
	assert.Equal(t, 0.5, a.Confidence)
	assert.Equal(t, []string{"complex question"}, a.SubQuestions)
}

func TestClassify_GarbageReplyFallsBack(t *testing.T) {
	caller := model.NewScriptedCaller("I think this is a knowledge base question.")
	c := NewClassifier(caller, nil)

	a := c.Classify(context.Background(), "q", "")
	assert.Equal(t, MultiStep, a.Category)
}

func TestClassify_UnknownCategoryNormalized(t *testing.T) {
	caller := model.NewScriptedCaller(`{"category": "galaxy_brain", "confidence": 0.9}`)
	c := NewClassifier(caller, nil)

	a := c.Classify(context.Background(), "q", "")
	assert.Equal(t, MultiStep, a.Category)
}

func TestClassify_ConfidenceClamped(t *testing.T) {
	caller := model.NewScriptedCaller(`{"category": "direct_answer", "confidence": 3.5}`)
	c := NewClassifier(caller, nil)

	a := c.Classify(context.Background(), "q", "")
	assert.Equal(t, DirectAnswer, a.Category)
	assert.Equal(t, 1.0, a.Confidence)
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
