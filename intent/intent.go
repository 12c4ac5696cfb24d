// Package intent implements the lightweight classification pre-pass that
// decides how a question should be handled before the full reasoning loop is
// engaged. One cheap low-temperature model call categorizes the question; the
// caller may then bypass the loop entirely for simple categories.
package intent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/raglab/reagent/logging"
	"github.com/raglab/reagent/model"
	"github.com/raglab/reagent/protocol"
)

// Category is the coarse question category assigned by the classifier.
type Category string

const (
	// KnowledgeBase marks questions answerable from the local knowledge base.
	KnowledgeBase Category = "knowledge_base"
	// WebSearch marks questions needing fresh data from the web.
	WebSearch Category = "web_search"
	// DirectAnswer marks greetings, small talk and trivial questions the
	// model can answer without any tool.
	DirectAnswer Category = "direct_answer"
	// Conversation marks questions referring back to earlier turns.
	Conversation Category = "conversation"
	// FileOperation marks questions requiring file reads or writes.
	FileOperation Category = "file_operation"
	// MultiStep marks complex tasks needing the full reasoning loop. It is
	// also the fallback category when classification fails.
	MultiStep Category = "multi_step"
	// Trending marks questions about trending topics.
	Trending Category = "trending"
)

// Analysis is the classifier's verdict on one question.
type Analysis struct {
	Category              Category `json:"category"`
	Confidence            float64  `json:"confidence"`
	Reasoning             string   `json:"reasoning"`
	SuggestedCapabilities []string `json:"suggested_capabilities,omitempty"`
	SubQuestions          []string `json:"sub_questions,omitempty"`
	NeedsRealtime         bool     `json:"needs_realtime"`
	Keywords              []string `json:"keywords,omitempty"`
}

const classifyTemplate = `You are a question analysis assistant. Analyze the user's question and decide how it should be handled. Do NOT answer the question.

[Context]
Current date: %s
Available tools: %s

[Prior conversation]
%s

[Question]
%s

Return strictly JSON in this shape, nothing else:

{
  "category": "<one of: knowledge_base, web_search, direct_answer, conversation, file_operation, multi_step, trending>",
  "confidence": 0.9,
  "reasoning": "<why>",
  "suggested_tools": ["<tool names>"],
  "sub_questions": ["<sub-questions for complex tasks>"],
  "needs_realtime": false,
  "keywords": ["<topic keywords>"]
}

[Category guide]
- knowledge_base: domain knowledge, concept explanations, documentation content
- web_search: realtime facts (weather, news, prices, latest events)
- direct_answer: greetings, common sense, simple calculations, code questions
- conversation: refers to earlier turns ("what did I just ask")
- file_operation: reading, creating, modifying or moving files
- multi_step: complex tasks needing several steps
- trending: trending topics and hot lists`

// classifyTemperature is deliberately low: classification wants a determinate
// verdict, not creativity.
const classifyTemperature = 0.1

// Options configure a Classifier.
type Options struct {
	Logger logging.Logger
	// Timeout bounds the classification call. Zero disables the deadline.
	Timeout time.Duration
	// Clock supplies the date injected into the prompt. Defaults to time.Now.
	Clock func() time.Time
}

// Classifier runs the classification pre-pass against a model caller.
type Classifier struct {
	caller  model.Caller
	tools   []string
	logger  logging.Logger
	timeout time.Duration
	clock   func() time.Time
}

// NewClassifier constructs a classifier advertising the given tool names in
// its prompt.
func NewClassifier(caller model.Caller, tools []string, optFns ...func(o *Options)) *Classifier {
	opts := Options{
		Timeout: 15 * time.Second,
		Clock:   time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Classifier{
		caller:  caller,
		tools:   tools,
		logger:  logging.OrNoOp(opts.Logger),
		timeout: opts.Timeout,
		clock:   opts.Clock,
	}
}

// Classify categorizes a question. Classification never fails the caller: any
// model or parse failure yields the MultiStep fallback, which routes the
// question into the full reasoning loop.
func (c *Classifier) Classify(ctx context.Context, question, history string) Analysis {
	tools := "rag_search, web_search"
	if len(c.tools) > 0 {
		tools = strings.Join(c.tools, ", ")
	}
	if strings.TrimSpace(history) == "" {
		history = "none"
	}
	prompt := fmt.Sprintf(classifyTemplate,
		c.clock().Format("2006-01-02"), tools, history, question)

	cctx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reply, err := model.Complete(cctx, c.caller, model.Request{
		Prompt:      prompt,
		Temperature: classifyTemperature,
	})
	if err != nil {
		c.logger.Warn("intent classification failed", "error", err)
		return fallback(question, "classification call failed: "+err.Error())
	}

	analysis, ok := parseAnalysis(reply)
	if !ok {
		c.logger.Warn("intent reply not parseable", "reply_len", len(reply))
		return fallback(question, "classification reply not parseable")
	}
	c.logger.Debug("intent classified",
		"category", analysis.Category, "confidence", analysis.Confidence)
	return analysis
}

// fallback is the analysis returned when classification cannot be trusted:
// route to the full loop at half confidence.
func fallback(question, reasoning string) Analysis {
	return Analysis{
		Category:     MultiStep,
		Confidence:   0.5,
		Reasoning:    reasoning,
		SubQuestions: []string{question},
	}
}

// parseAnalysis extracts the verdict from a model reply that may wrap its
// JSON in code fences or prose. gjson tolerates the trailing noise a strict
// unmarshal would reject.
func parseAnalysis(reply string) (Analysis, bool) {
	body := stripFences(reply)
	if i := strings.Index(body, "{"); i > 0 {
		body = body[i:]
	}
	if obj, ok := protocol.ExtractObject(strings.TrimSpace(body)); ok {
		body = obj
	}
	if !gjson.Valid(body) {
		return Analysis{}, false
	}
	root := gjson.Parse(body)
	if !root.Get("category").Exists() {
		return Analysis{}, false
	}

	a := Analysis{
		Category:      normalizeCategory(root.Get("category").String()),
		Confidence:    root.Get("confidence").Float(),
		Reasoning:     root.Get("reasoning").String(),
		NeedsRealtime: root.Get("needs_realtime").Bool(),
	}
	for _, v := range root.Get("suggested_tools").Array() {
		a.SuggestedCapabilities = append(a.SuggestedCapabilities, v.String())
	}
	for _, v := range root.Get("sub_questions").Array() {
		a.SubQuestions = append(a.SubQuestions, v.String())
	}
	for _, v := range root.Get("keywords").Array() {
		a.Keywords = append(a.Keywords, v.String())
	}
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a, true
}

func normalizeCategory(s string) Category {
	switch Category(strings.ToLower(strings.TrimSpace(s))) {
	case KnowledgeBase, WebSearch, DirectAnswer, Conversation, FileOperation, MultiStep, Trending:
		return Category(strings.ToLower(strings.TrimSpace(s)))
	default:
		return MultiStep
	}
}

// stripFences removes a markdown code fence around the reply body, if any.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	if i := strings.LastIndex(s, "```"); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
