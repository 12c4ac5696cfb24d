// Package reagent provides a high-level façade over the reasoning
// orchestrator and its collaborators (capability registry, intent
// classification, conversation history & logging) enabling rapid construction
// of retrieval-augmented assistants. Most applications interact with this
// package by:
//  1. Creating an Assistant via New() (optionally overriding defaults)
//  2. Registering capabilities on the shared registry
//  3. Asking questions synchronously (Ask) or as an event stream (AskStream)
//
// The façade delegates the iterative loop to reason.Orchestrator while adding
// the routing pre-pass: cheap question categories (small talk, references to
// earlier turns, confident single-retrieval lookups) are short-circuited
// without spending a full multi-iteration run. All defaults are safe for
// local development; production deployments typically supply a structured
// logger and a durable conversation store.
package reagent

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/raglab/reagent/capability"
	"github.com/raglab/reagent/conversation"
	"github.com/raglab/reagent/intent"
	"github.com/raglab/reagent/logging"
	"github.com/raglab/reagent/model"
	"github.com/raglab/reagent/reason"
)

// Options configures the Assistant instance.
type Options struct {
	// RunConfig tunes the underlying reasoning loop.
	RunConfig reason.RunConfig

	// EnableRouting turns on the intent classification pre-pass. When off,
	// every question goes through the full reasoning loop.
	EnableRouting bool

	// RetrievalCapability names the registered capability invoked directly
	// for confident knowledge-base questions. The short-circuit only fires
	// when a capability with this name is registered.
	RetrievalCapability string

	// RetrievalConfidence is the minimum classifier confidence required for
	// the direct retrieval short-circuit.
	RetrievalConfidence float64

	// HistoryTurns bounds the number of prior exchanges injected into
	// prompts.
	HistoryTurns int

	// Store holds conversation histories (defaults to in-memory).
	Store conversation.Store

	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// Assistant is the high-level façade aggregating the orchestrator and its
// services.
type Assistant struct {
	opts         Options
	caller       model.Caller
	registry     *capability.Registry
	orchestrator *reason.Orchestrator
	classifier   *intent.Classifier
	store        conversation.Store
	logger       logging.Logger
}

// New creates a new Assistant over the given model caller and registry with
// optional overrides. Any unset service is initialized with an in-memory
// implementation.
func New(caller model.Caller, registry *capability.Registry, optFns ...func(o *Options)) *Assistant {
	opts := Options{
		RunConfig:           reason.DefaultRunConfig(),
		EnableRouting:       true,
		RetrievalCapability: "rag_search",
		RetrievalConfidence: 0.8,
		HistoryTurns:        5,
		Store:               conversation.NewInMemoryStore(),
		Logger:              logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if registry == nil {
		registry = capability.NewRegistry()
	}

	orchestrator := reason.New(caller, registry, func(o *reason.Options) {
		o.Config = opts.RunConfig
		o.Logger = opts.Logger
	})
	classifier := intent.NewClassifier(caller, registry.Names(), func(o *intent.Options) {
		o.Logger = opts.Logger
	})

	return &Assistant{
		opts:         opts,
		caller:       caller,
		registry:     registry,
		orchestrator: orchestrator,
		classifier:   classifier,
		store:        opts.Store,
		logger:       logging.OrNoOp(opts.Logger),
	}
}

// Registry returns the shared capability registry.
func (a *Assistant) Registry() *capability.Registry { return a.registry }

// Orchestrator returns the underlying reasoning orchestrator.
func (a *Assistant) Orchestrator() *reason.Orchestrator { return a.orchestrator }

// StartConversation opens a new conversation and returns its ID.
func (a *Assistant) StartConversation() string { return a.store.Create() }

// ClearConversation drops a conversation's history.
func (a *Assistant) ClearConversation(id string) { a.store.Clear(id) }

// Ask answers a question within a conversation. The question and a successful
// answer are recorded in the conversation history; an empty conversationID
// runs without history or recording.
//
// With routing enabled the classification pre-pass may short-circuit the
// loop: references to earlier turns and trivial questions are answered with a
// single model call, and a confident knowledge-base question goes straight to
// the retrieval capability. Everything else, including every classification
// failure, takes the full reasoning loop.
func (a *Assistant) Ask(ctx context.Context, conversationID, question string) reason.RunResult {
	history := ""
	if conversationID != "" {
		a.store.Append(conversationID, conversation.RoleUser, question)
		history = conversation.Format(a.store, conversationID, a.opts.HistoryTurns)
	}

	res := a.route(ctx, question, history)
	if conversationID != "" && res.Success {
		a.store.Append(conversationID, conversation.RoleAssistant, res.Answer)
	}
	return res
}

// AskStream is the streaming counterpart of Ask. Routing is bypassed: the
// question always takes the full loop, since short-circuit paths have no
// incremental events to offer. The successful answer is recorded in the
// conversation history once the run terminates.
func (a *Assistant) AskStream(ctx context.Context, conversationID, question string) (<-chan reason.StreamEvent, <-chan reason.RunResult) {
	history := ""
	if conversationID != "" {
		a.store.Append(conversationID, conversation.RoleUser, question)
		history = conversation.Format(a.store, conversationID, a.opts.HistoryTurns)
	}

	events, results := a.orchestrator.RunStream(ctx, question, history)
	if conversationID == "" {
		return events, results
	}

	out := make(chan reason.RunResult, 1)
	go func() {
		defer close(out)
		res, ok := <-results
		if !ok {
			return
		}
		if res.Success {
			a.store.Append(conversationID, conversation.RoleAssistant, res.Answer)
		}
		out <- res
	}()
	return events, out
}

// route decides how a question is handled and produces its result.
func (a *Assistant) route(ctx context.Context, question, history string) reason.RunResult {
	if !a.opts.EnableRouting {
		return a.orchestrator.Run(ctx, question, history)
	}

	analysis := a.classifier.Classify(ctx, question, history)
	a.logger.Info("question routed",
		"category", analysis.Category, "confidence", analysis.Confidence)

	switch analysis.Category {
	case intent.Conversation:
		return a.answerFromHistory(ctx, question, history)
	case intent.DirectAnswer:
		return a.answerDirectly(ctx, question)
	case intent.KnowledgeBase:
		if analysis.Confidence >= a.opts.RetrievalConfidence {
			if res, ok := a.answerFromRetrieval(question); ok {
				return res
			}
		}
	}
	return a.orchestrator.Run(ctx, question, history)
}

const historyAnswerTemplate = `Answer the user's question based on the prior conversation below.

[Prior conversation]
%s

[Question]
%s

Give the answer directly. If the prior conversation holds no relevant information, say so honestly.`

// answerFromHistory answers a question referring to earlier turns with a
// single model call over the conversation history.
func (a *Assistant) answerFromHistory(ctx context.Context, question, history string) reason.RunResult {
	if history == "" {
		history = "none"
	}
	prompt := fmt.Sprintf(historyAnswerTemplate, history, question)
	answer, err := a.complete(ctx, prompt)
	if err != nil {
		a.logger.Warn("history answer failed, falling back to full run", "error", err)
		return a.orchestrator.Run(ctx, question, history)
	}
	return directResult(answer+"\n\nsource: conversation history", nil)
}

const directAnswerTemplate = `Answer the following question. It needs no external tools (common sense, simple calculation, code).

[Question]
%s

Give an accurate, concise answer.`

// answerDirectly answers a trivial question with a single model call.
func (a *Assistant) answerDirectly(ctx context.Context, question string) reason.RunResult {
	answer, err := a.complete(ctx, fmt.Sprintf(directAnswerTemplate, question))
	if err != nil {
		a.logger.Warn("direct answer failed, falling back to full run", "error", err)
		return a.orchestrator.Run(ctx, question, "")
	}
	return directResult(answer, nil)
}

// answerFromRetrieval invokes the configured retrieval capability directly.
// It reports false when the capability is missing or fails, signalling the
// caller to fall back to the full loop.
func (a *Assistant) answerFromRetrieval(question string) (reason.RunResult, bool) {
	name := a.opts.RetrievalCapability
	cp, ok := a.registry.Lookup(name)
	if !ok {
		return reason.RunResult{}, false
	}
	res, err := cp.Invoke(map[string]any{"query": question})
	if err != nil || !res.Success || res.Output == "" {
		a.logger.Warn("direct retrieval failed, falling back to full run",
			"capability", name, "error", err)
		return reason.RunResult{}, false
	}
	return directResult(res.Output, []string{name}), true
}

// complete performs one plain model call under the configured model timeout.
func (a *Assistant) complete(ctx context.Context, prompt string) (string, error) {
	if t := a.opts.RunConfig.ModelTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	return model.Complete(ctx, a.caller, model.Request{
		Prompt:      prompt,
		Temperature: a.opts.RunConfig.Temperature,
	})
}

// directResult wraps a short-circuit answer in the result shape of a full
// run: one iteration, no recorded steps.
func directResult(answer string, toolsUsed []string) reason.RunResult {
	if toolsUsed == nil {
		toolsUsed = []string{}
	}
	return reason.RunResult{
		ID:         uuid.NewString(),
		Success:    true,
		Answer:     answer,
		Steps:      []reason.ReasoningStep{},
		ToolsUsed:  toolsUsed,
		Iterations: 1,
	}
}
