package reason

import "context"

// Stream event type tags, emitted in the documented order: start; per
// iteration iteration, thinking_start, (answer_start, answer_token...)?,
// thinking_end, then either action+observation or answer; finally meta and
// done. A fatal model failure emits error and terminates the stream.
const (
	EventStart         = "start"
	EventIteration     = "iteration"
	EventThinkingStart = "thinking_start"
	EventAnswerStart   = "answer_start"
	EventAnswerToken   = "answer_token"
	EventThinkingEnd   = "thinking_end"
	EventAction        = "action"
	EventObservation   = "observation"
	EventAnswer        = "answer"
	EventMeta          = "meta"
	EventDone          = "done"
	EventError         = "error"
)

// StreamEvent is one incremental notification of a streaming run. Events are
// one-way and ephemeral; they are not retained after emission.
type StreamEvent struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
	Step int    `json:"step,omitempty"`
}

// IterationData is the payload of an iteration event.
type IterationData struct {
	Iteration int `json:"iteration"`
	Max       int `json:"max"`
}

// ActionData is the payload of an action event.
type ActionData struct {
	Tool  string         `json:"tool"`
	Input map[string]any `json:"input"`
}

// ObservationData is the payload of an observation event. Text is truncated
// for display; the full text lives on the recorded ReasoningStep.
type ObservationData struct {
	Text string         `json:"text"`
	Data map[string]any `json:"data,omitempty"`
}

// MetaData is the payload of the meta event emitted after the loop.
type MetaData struct {
	ToolsUsed      []string `json:"tools_used"`
	Iterations     int      `json:"iterations"`
	ElapsedSeconds float64  `json:"elapsed"`
}

// observationPreviewLimit bounds the text carried on observation events.
const observationPreviewLimit = 500

// RunStream executes the same algorithm as Run while emitting StreamEvents.
//
// One goroutine drives the state machine and pushes events into the returned
// channel while the consumer pulls; within a run the documented ordering is
// guaranteed (action always precedes its observation, thinking_end precedes
// any action or answer event of its step). While the model streams, a prefix
// scan watches for the Final Answer marker: fragments before it are buffered
// silently, everything from the marker on streams out as answer_start and
// answer_token events.
//
// The events channel is closed once the run terminates; the RunResult is then
// delivered on the second channel (buffered, never blocking). A consumer that
// cancels ctx before done simply abandons the run; no cancellation is
// propagated into an in-flight capability invocation.
func (o *Orchestrator) RunStream(ctx context.Context, question, history string) (<-chan StreamEvent, <-chan RunResult) {
	events := make(chan StreamEvent, 16)
	results := make(chan RunResult, 1)

	go func() {
		defer close(results)
		r := o.newRun(question, history)
		r.stream = true
		r.emit = func(ev StreamEvent) bool {
			select {
			case <-ctx.Done():
				return false
			case events <- ev:
				return true
			}
		}
		res := r.loop(ctx)
		close(events)
		results <- res
	}()

	return events, results
}
