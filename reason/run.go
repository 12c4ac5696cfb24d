package reason

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/raglab/reagent/capability"
	"github.com/raglab/reagent/model"
	"github.com/raglab/reagent/protocol"
)

// run carries the mutable state of one reasoning run. A fresh run is created
// per call, so concurrent runs never share state beyond the orchestrator's
// immutable fields.
type run struct {
	o          *Orchestrator
	id         string
	question   string
	transcript *transcript
	state      RunState
	steps      []ReasoningStep
	toolsUsed  []string
	used       map[string]bool
	answer     string
	answered   bool
	start      time.Time
	iterations int

	// stream / emit are set by RunStream; emit returns false when the
	// consumer is gone and the run should be abandoned.
	stream bool
	emit   func(StreamEvent) bool
}

func (o *Orchestrator) newRun(question, history string) *run {
	now := o.clock()
	return &run{
		o:          o,
		id:         uuid.NewString(),
		question:   question,
		transcript: newTranscript(buildInitialPrompt(now, history, o.registry.Describe(), question)),
		state:      StateIdle,
		used:       map[string]bool{},
		start:      time.Now(),
	}
}

// Run executes the blocking reasoning loop and returns its terminal result.
//
// Run never returns an error: every fallible step is converted at its boundary
// into the result's success flag and answer text. A model call failure is
// fatal for the run; a spent iteration budget is a soft failure with the fixed
// ExhaustedAnswer text.
func (o *Orchestrator) Run(ctx context.Context, question, history string) RunResult {
	return o.newRun(question, history).loop(ctx)
}

func (r *run) push(ev StreamEvent) bool {
	if r.emit == nil {
		return true
	}
	return r.emit(ev)
}

func (r *run) loop(ctx context.Context) RunResult {
	cfg := r.o.cfg
	log := r.o.logger
	log.Info("run started", "run_id", r.id, "question_len", len(r.question),
		"max_iterations", cfg.MaxIterations, "reflection", cfg.EnableReflection)

	var plan []string
	if cfg.EnablePlanning {
		plan = r.o.Plan(ctx, r.question)
	}

	if !r.push(StreamEvent{Type: EventStart, Data: "reasoning started"}) {
		return r.abandoned(plan)
	}

	for r.iterations < cfg.MaxIterations {
		r.iterations++
		if !r.push(StreamEvent{Type: EventIteration, Step: r.iterations,
			Data: IterationData{Iteration: r.iterations, Max: cfg.MaxIterations}}) {
			return r.abandoned(plan)
		}

		r.state = StateThinking
		if !r.push(StreamEvent{Type: EventThinkingStart, Step: r.iterations}) {
			return r.abandoned(plan)
		}

		raw, err := r.callModel(ctx)
		if err != nil {
			r.state = StateFailed
			log.Error("model call failed", "run_id", r.id, "iteration", r.iterations, "error", err)
			r.push(StreamEvent{Type: EventError, Step: r.iterations, Data: err.Error()})
			return r.result(fmt.Sprintf("model call failed: %v", err), plan, "")
		}
		if cfg.Verbose {
			log.Info("model output", "run_id", r.id, "iteration", r.iterations, "output", raw)
		} else {
			log.Debug("model output", "run_id", r.id, "iteration", r.iterations, "output_len", len(raw))
		}
		if !r.push(StreamEvent{Type: EventThinkingEnd, Step: r.iterations, Data: raw}) {
			return r.abandoned(plan)
		}

		outcome := protocol.Parse(raw)
		step := ReasoningStep{Step: r.iterations, Thought: protocol.Thought(raw)}

		switch outcome.Kind {
		case protocol.FinalAnswer:
			r.answer = outcome.Answer
			r.answered = true
			step.Observation = finalAnswerObservation
			r.steps = append(r.steps, step)
			r.push(StreamEvent{Type: EventAnswer, Step: r.iterations, Data: r.answer})

		case protocol.Action:
			r.state = StateActing
			step.Action = outcome.Tool
			step.ActionInput = outcome.Params
			if !r.push(StreamEvent{Type: EventAction, Step: r.iterations,
				Data: ActionData{Tool: outcome.Tool, Input: outcome.Params}}) {
				return r.abandoned(plan)
			}

			obsText, obsData := r.invoke(outcome.Tool, outcome.Params)
			step.Observation = obsText
			step.ObservationData = obsData
			if !r.push(StreamEvent{Type: EventObservation, Step: r.iterations,
				Data: ObservationData{Text: truncate(obsText, observationPreviewLimit), Data: obsData}}) {
				return r.abandoned(plan)
			}

			r.steps = append(r.steps, step)
			r.transcript.append(roleAssistant, raw)
			r.transcript.append(roleUser, protocol.ObservationMarker+" "+obsText+"\n\n"+continueInstruction)
			r.state = StateThinking

		default:
			// Unparseable output: consume the iteration on a format
			// correction, no tool slot.
			step.Observation = noActionObservation
			r.steps = append(r.steps, step)
			r.transcript.append(roleAssistant, raw)
			r.transcript.append(roleUser, reformatInstruction)
		}

		if r.answered {
			break
		}
	}

	reflection := ""
	if r.answered && cfg.EnableReflection {
		r.state = StateReflecting
		approved, suggestion := r.o.reflect(ctx, r.question, r.answer, r.toolsUsed)
		if !approved && suggestion != "" {
			reflection = suggestion
			if n := len(r.steps); n > 0 {
				r.steps[n-1].Reflection = suggestion
			}
			log.Warn("reflection rejected answer", "run_id", r.id, "suggestion", suggestion)
		}
	}

	r.state = StateCompleted
	answer := r.answer
	if !r.answered {
		answer = ExhaustedAnswer
	}

	elapsed := time.Since(r.start)
	r.push(StreamEvent{Type: EventMeta, Data: MetaData{
		ToolsUsed:      append([]string{}, r.toolsUsed...),
		Iterations:     r.iterations,
		ElapsedSeconds: elapsed.Seconds(),
	}})
	r.push(StreamEvent{Type: EventDone})
	log.Info("run completed", "run_id", r.id, "success", r.answered,
		"iterations", r.iterations, "tools_used", r.toolsUsed, "elapsed", elapsed)

	res := r.result(answer, plan, reflection)
	res.Success = r.answered
	return res
}

// result assembles the terminal RunResult from the run's current state.
// Iterations is derived from the recorded steps, so it stays equal to
// len(Steps) even when a run dies mid-iteration without producing one.
func (r *run) result(answer string, plan []string, reflection string) RunResult {
	return RunResult{
		ID:         r.id,
		Success:    false,
		Answer:     answer,
		Steps:      r.steps,
		ToolsUsed:  append([]string{}, r.toolsUsed...),
		Iterations: len(r.steps),
		Reflection: reflection,
		Plan:       plan,
		Elapsed:    time.Since(r.start),
	}
}

// abandoned produces the result of a run whose stream consumer went away.
func (r *run) abandoned(plan []string) RunResult {
	r.state = StateFailed
	r.o.logger.Warn("run abandoned by consumer", "run_id", r.id, "iteration", r.iterations)
	return r.result("run abandoned before completion", plan, "")
}

// invoke resolves and executes one capability, converting every failure mode
// (unknown name, returned error, panic) into an observation instead of an
// escaping error.
func (r *run) invoke(name string, params map[string]any) (string, map[string]any) {
	cp, ok := r.o.registry.Lookup(name)
	if !ok {
		msg := fmt.Sprintf("unknown capability %q; available: %s",
			name, strings.Join(r.o.registry.Names(), ", "))
		r.o.logger.Warn("unknown capability requested", "run_id", r.id, "capability", name)
		return msg, map[string]any{"success": false, "error": msg}
	}

	r.markUsed(name)
	start := time.Now()
	res, err := safeInvoke(cp, params)
	dur := time.Since(start)
	r.o.logger.Debug("capability invoked", "run_id", r.id, "capability", name,
		"duration", dur, "success", err == nil && res.Success)

	if err != nil || !res.Success {
		reason := res.Error
		if reason == "" && err != nil {
			reason = err.Error()
		}
		return "tool execution failed: " + reason, map[string]any{"success": false, "error": reason}
	}

	data := map[string]any{"success": true, "output": res.Output}
	if res.Data != nil {
		data["data"] = res.Data
	}
	if res.Metadata != nil {
		data["metadata"] = res.Metadata
	}
	return res.Output, data
}

// safeInvoke shields the loop from panicking capabilities.
func safeInvoke(c capability.Capability, params map[string]any) (res capability.Result, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			res = capability.ErrorResult(err.Error())
		}
	}()
	return c.Invoke(params)
}

func (r *run) markUsed(name string) {
	if r.used[name] {
		return
	}
	r.used[name] = true
	r.toolsUsed = append(r.toolsUsed, name)
}

// callModel performs the model call at the top of an iteration. In streaming
// mode it additionally runs the answer prefix scan over incoming fragments.
func (r *run) callModel(ctx context.Context) (string, error) {
	cfg := r.o.cfg
	cctx := ctx
	if cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, cfg.ModelTimeout)
		defer cancel()
	}

	req := model.Request{
		Prompt:      r.transcript.render(),
		Temperature: cfg.Temperature,
		Stream:      r.stream,
	}
	if !r.stream {
		return model.Complete(cctx, r.o.caller, req)
	}

	respCh, errCh := r.o.caller.Generate(cctx, req)
	var accumulated strings.Builder
	finalText := ""
	haveFinal := false
	inAnswer := false

	for respCh != nil || errCh != nil {
		select {
		case resp, ok := <-respCh:
			if !ok {
				respCh = nil
				continue
			}
			if !resp.Partial {
				finalText = resp.Text
				haveFinal = true
				continue
			}
			accumulated.WriteString(resp.Text)
			r.scanAnswer(accumulated.String(), resp.Text, &inAnswer)
		case err, ok := <-errCh:
			if !ok {
				errCh = nil
				continue
			}
			if err != nil {
				return "", err
			}
		}
	}

	if haveFinal {
		return finalText, nil
	}
	return accumulated.String(), nil
}

// scanAnswer watches the accumulated model output for the Final Answer
// marker. Fragments before the marker stay buffered; once the marker first
// appears (possibly completed mid-fragment) everything after it is emitted as
// answer_start plus answer_token, and subsequent fragments stream directly as
// further answer_tokens.
func (r *run) scanAnswer(accumulated, fragment string, inAnswer *bool) {
	if *inAnswer {
		r.push(StreamEvent{Type: EventAnswerToken, Step: r.iterations, Data: fragment})
		return
	}
	idx := strings.Index(accumulated, protocol.FinalAnswerMarker)
	if idx < 0 {
		return
	}
	*inAnswer = true
	r.push(StreamEvent{Type: EventAnswerStart, Step: r.iterations})
	tail := strings.TrimLeft(accumulated[idx+len(protocol.FinalAnswerMarker):], " \t\r\n")
	if tail != "" {
		r.push(StreamEvent{Type: EventAnswerToken, Step: r.iterations, Data: tail})
	}
}

// truncate bounds s to limit runes, appending an ellipsis when cut.
func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
