// Package reason implements the reasoning orchestrator: the state machine
// that turns a user question into an interleaved sequence of model thoughts,
// capability invocations and observations, governed by the protocol grammar,
// optionally self-critiqued, and exposed both as a single blocking call (Run)
// and as an incremental event stream (RunStream).
package reason

import (
	"time"

	"github.com/raglab/reagent/capability"
	"github.com/raglab/reagent/logging"
	"github.com/raglab/reagent/model"
)

// RunState tracks where a single run currently is in its lifecycle. It is
// transient, scoped to one run and mutated only by the orchestrator.
type RunState int

const (
	// StateIdle is the state before the first model call.
	StateIdle RunState = iota
	// StateThinking means a model call is in flight or being parsed.
	StateThinking
	// StateActing means a capability invocation is in flight.
	StateActing
	// StateReflecting means the advisory critic call is in flight.
	StateReflecting
	// StateCompleted is the terminal state of a finished run.
	StateCompleted
	// StateFailed is the terminal state after a fatal model call failure.
	StateFailed
)

// String returns the lowercase state name.
func (s RunState) String() string {
	switch s {
	case StateThinking:
		return "thinking"
	case StateActing:
		return "acting"
	case StateReflecting:
		return "reflecting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// RunConfig holds the per-run tuning knobs. It is immutable for the lifetime
// of an orchestrator.
type RunConfig struct {
	// MaxIterations caps the number of reasoning iterations per run.
	MaxIterations int
	// Temperature is forwarded to every model call of the run.
	Temperature float64
	// EnableReflection turns on the advisory grounding critic (one extra
	// model call after a final answer).
	EnableReflection bool
	// EnablePlanning attaches an advisory numbered plan to the result.
	EnablePlanning bool
	// Verbose raises per-iteration model output logging to info level.
	Verbose bool
	// ModelTimeout bounds each individual model call. Zero disables the
	// deadline. Capability invocations are never put under this timeout;
	// capabilities own their own I/O deadlines.
	ModelTimeout time.Duration
}

// DefaultRunConfig returns the baseline configuration: five iterations,
// moderate temperature, advisory passes off.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxIterations: 5,
		Temperature:   0.7,
		ModelTimeout:  30 * time.Second,
	}
}

// ReasoningStep records one iteration of the loop. Steps are append-only and
// numbered from 1; a step carries either an action with its observation or
// the terminal final answer, never both.
type ReasoningStep struct {
	Step            int            `json:"step"`
	Thought         string         `json:"thought"`
	Action          string         `json:"action,omitempty"`
	ActionInput     map[string]any `json:"action_input,omitempty"`
	Observation     string         `json:"observation,omitempty"`
	ObservationData map[string]any `json:"observation_data,omitempty"`
	Reflection      string         `json:"reflection,omitempty"`
}

// RunResult is the terminal outcome of one run, produced exactly once.
// Iterations always equals len(Steps) and never exceeds
// RunConfig.MaxIterations.
type RunResult struct {
	ID         string          `json:"id"`
	Success    bool            `json:"success"`
	Answer     string          `json:"answer"`
	Steps      []ReasoningStep `json:"steps"`
	ToolsUsed  []string        `json:"tools_used"`
	Iterations int             `json:"iterations"`
	Reflection string          `json:"reflection,omitempty"`
	Plan       []string        `json:"plan,omitempty"`
	Elapsed    time.Duration   `json:"elapsed"`
}

// ExhaustedAnswer is the fixed answer text of a run that spent its iteration
// budget without reaching a final answer. Such a run is a soft failure, not an
// error.
const ExhaustedAnswer = "no final answer could be reached within the iteration limit"

// Options configure an Orchestrator.
type Options struct {
	Config RunConfig
	Logger logging.Logger
	// Clock supplies the timestamp injected into the initial prompt.
	// Defaults to time.Now; overridable for deterministic tests.
	Clock func() time.Time
}

// Orchestrator drives the reasoning loop against a model caller and a
// capability registry.
//
// An orchestrator holds no cross-run mutable state: the registry is read-only
// after construction and every run owns its own transcript and step list, so
// multiple independent runs may execute concurrently on one instance. Within
// a run everything is strictly sequential; there is exactly one capability
// invocation per iteration and never an overlapping model call.
type Orchestrator struct {
	caller   model.Caller
	registry *capability.Registry
	cfg      RunConfig
	logger   logging.Logger
	clock    func() time.Time
}

// New constructs an orchestrator over the given model caller and registry.
func New(caller model.Caller, registry *capability.Registry, optFns ...func(o *Options)) *Orchestrator {
	opts := Options{
		Config: DefaultRunConfig(),
		Clock:  time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if registry == nil {
		registry = capability.NewRegistry()
	}
	return &Orchestrator{
		caller:   caller,
		registry: registry,
		cfg:      opts.Config,
		logger:   logging.OrNoOp(opts.Logger),
		clock:    opts.Clock,
	}
}

// Config returns the immutable run configuration.
func (o *Orchestrator) Config() RunConfig { return o.cfg }

// Registry returns the shared capability registry.
func (o *Orchestrator) Registry() *capability.Registry { return o.registry }
