package reagent

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raglab/reagent/capability"
	"github.com/raglab/reagent/conversation"
	"github.com/raglab/reagent/model"
)

func classification(category string, confidence float64) string {
	return fmt.Sprintf(`{"category": %q, "confidence": %g, "reasoning": "test"}`,
		category, confidence)
}

func retrievalRegistry(output string) *capability.Registry {
	r := capability.NewRegistry()
	r.MustRegister(capability.NewFunction(
		"rag_search",
		"Search the local knowledge base",
		[]capability.Param{{Name: "query", Type: "string", Description: "Search query", Required: true}},
		func(args map[string]any) (capability.Result, error) {
			return capability.TextResult(output), nil
		},
	))
	return r
}

// -------------------- Routing Tests --------------------

func TestAsk_DirectAnswerShortCircuit(t *testing.T) {
	caller := model.NewScriptedCaller(
		classification("direct_answer", 0.95),
		"Paris",
	)
	a := New(caller, capability.NewRegistry())

	res := a.Ask(context.Background(), "", "capital of France?")

	assert.True(t, res.Success)
	assert.Equal(t, "Paris", res.Answer)
	assert.Equal(t, 1, res.Iterations)
	assert.Empty(t, res.ToolsUsed)
	assert.Empty(t, res.Steps)
}

func TestAsk_ConversationShortCircuitAnnotatesSource(t *testing.T) {
	caller := model.NewScriptedCaller(
		classification("conversation", 0.9),
		"You asked about RAG.",
	)
	a := New(caller, capability.NewRegistry())

	res := a.Ask(context.Background(), "", "what did I just ask?")

	assert.True(t, res.Success)
	assert.Contains(t, res.Answer, "You asked about RAG.")
	assert.Contains(t, res.Answer, "source: conversation history")
}

func TestAsk_ConfidentKnowledgeBaseGoesStraightToRetrieval(t *testing.T) {
	// Only the classification is scripted: the retrieval short-circuit must
	// not spend another model call.
	caller := model.NewScriptedCaller(classification("knowledge_base", 0.9))
	a := New(caller, retrievalRegistry("RAG is retrieval-augmented generation"))

	res := a.Ask(context.Background(), "", "what is RAG?")

	assert.True(t, res.Success)
	assert.Equal(t, "RAG is retrieval-augmented generation", res.Answer)
	assert.Equal(t, []string{"rag_search"}, res.ToolsUsed)
}

func TestAsk_LowConfidenceKnowledgeBaseTakesFullLoop(t *testing.T) {
	caller := model.NewScriptedCaller(
		classification("knowledge_base", 0.5),
		"Thought: done\nFinal Answer: from the full loop",
	)
	a := New(caller, retrievalRegistry("unused"))

	res := a.Ask(context.Background(), "", "what is RAG?")

	assert.True(t, res.Success)
	assert.Equal(t, "from the full loop", res.Answer)
}

func TestAsk_KnowledgeBaseWithoutRetrievalCapabilityTakesFullLoop(t *testing.T) {
	caller := model.NewScriptedCaller(
		classification("knowledge_base", 0.9),
		"Thought: done\nFinal Answer: from the full loop",
	)
	a := New(caller, capability.NewRegistry())

	res := a.Ask(context.Background(), "", "what is RAG?")

	assert.True(t, res.Success)
	assert.Equal(t, "from the full loop", res.Answer)
}

func TestAsk_RoutingDisabled(t *testing.T) {
	caller := model.NewScriptedCaller("Thought: done\nFinal Answer: straight through")
	a := New(caller, capability.NewRegistry(), func(o *Options) {
		o.EnableRouting = false
	})

	res := a.Ask(context.Background(), "", "anything")

	assert.True(t, res.Success)
	assert.Equal(t, "straight through", res.Answer)
}

func TestAsk_ClassificationFailureTakesFullLoop(t *testing.T) {
	caller := model.NewScriptedCaller(
		"not json at all",
		"Thought: done\nFinal Answer: fallback path",
	)
	a := New(caller, capability.NewRegistry())

	res := a.Ask(context.Background(), "", "q")

	assert.True(t, res.Success)
	assert.Equal(t, "fallback path", res.Answer)
}

// -------------------- Conversation Tests --------------------

func TestAsk_RecordsConversationHistory(t *testing.T) {
	store := conversation.NewInMemoryStore()
	caller := model.NewScriptedCaller("Thought: done\nFinal Answer: hello back")
	a := New(caller, capability.NewRegistry(), func(o *Options) {
		o.EnableRouting = false
		o.Store = store
	})

	id := a.StartConversation()
	res := a.Ask(context.Background(), id, "hello")
	require.True(t, res.Success)

	msgs := store.History(id, 0)
	require.Len(t, msgs, 2)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, conversation.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "hello back", msgs[1].Content)
}

func TestAsk_FailedRunNotRecorded(t *testing.T) {
	store := conversation.NewInMemoryStore()
	caller := model.NewScriptedCaller("no directive here")
	a := New(caller, capability.NewRegistry(), func(o *Options) {
		o.EnableRouting = false
		o.Store = store
		o.RunConfig.MaxIterations = 1
	})

	id := a.StartConversation()
	res := a.Ask(context.Background(), id, "q")
	require.False(t, res.Success)

	msgs := store.History(id, 0)
	require.Len(t, msgs, 1)
	assert.Equal(t, conversation.RoleUser, msgs[0].Role)
}

func TestAskStream_RecordsAnswer(t *testing.T) {
	store := conversation.NewInMemoryStore()
	caller := model.NewScriptedCaller("Thought: done\nFinal Answer: streamed answer")
	a := New(caller, capability.NewRegistry(), func(o *Options) {
		o.Store = store
	})

	id := a.StartConversation()
	events, results := a.AskStream(context.Background(), id, "q")
	for range events {
	}
	res, ok := <-results
	require.True(t, ok)
	assert.True(t, res.Success)
	assert.Equal(t, "streamed answer", res.Answer)

	msgs := store.History(id, 0)
	require.Len(t, msgs, 2)
	assert.Equal(t, "streamed answer", msgs[1].Content)
}

func TestClearConversation(t *testing.T) {
	store := conversation.NewInMemoryStore()
	a := New(model.NewScriptedCaller(), capability.NewRegistry(), func(o *Options) {
		o.Store = store
	})

	id := a.StartConversation()
	store.Append(id, conversation.RoleUser, "hello")
	a.ClearConversation(id)
	assert.Empty(t, store.History(id, 0))
}
