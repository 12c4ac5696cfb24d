package reason

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/raglab/reagent/model"
)

// approvedToken is the verdict token the critic emits for a grounded answer.
const approvedToken = "APPROVED"

const reflectionTemplate = `Review the quality of the following answer.

Question: %s
Answer: %s
Tools used: %s

Evaluate strictly:
1. Is the answer based entirely on tool observations or the prior conversation? (no outside knowledge allowed)
2. If sources are cited, are they real URLs or file names that appeared in an observation?
3. Are there fabricated source names without a concrete URL or file?
4. Does the answer content actually appear in the observations?
5. Any trace of fabrication, speculation or common-sense filling?

If the answer is fully grounded and the sources are real, output: APPROVED
If a source was fabricated or outside knowledge was used, output: RETRY: sources must be real URLs or file names from the observations
For any other needed improvement, output: RETRY: <suggestion>`

var retryRe = regexp.MustCompile(`(?s)RETRY:\s*(.+)`)

// reflect performs the advisory grounding check on a final answer: one extra
// model call asking whether the answer is strictly grounded in observations or
// the prior conversation. Any call failure is fail-open (treated as approved)
// so a critic outage never blocks delivery. The verdict is purely advisory;
// it annotates the result but never mutates the answer and never triggers a
// retry.
func (o *Orchestrator) reflect(ctx context.Context, question, answer string, toolsUsed []string) (bool, string) {
	tools := "none"
	if len(toolsUsed) > 0 {
		tools = strings.Join(toolsUsed, ", ")
	}
	prompt := fmt.Sprintf(reflectionTemplate, question, answer, tools)

	cctx := ctx
	if o.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, o.cfg.ModelTimeout)
		defer cancel()
	}

	verdict, err := model.Complete(cctx, o.caller, model.Request{Prompt: prompt, Temperature: o.cfg.Temperature})
	if err != nil {
		o.logger.Warn("reflection call failed, treating as approved", "error", err)
		return true, ""
	}

	if strings.Contains(strings.ToUpper(verdict), approvedToken) {
		return true, ""
	}
	if m := retryRe.FindStringSubmatch(verdict); m != nil {
		return false, strings.TrimSpace(m[1])
	}
	return true, ""
}

const planningTemplate = `Analyze the following task and produce an execution plan.

Task: %s

Available tools: %s

Output a step-by-step plan in this format:
Step 1: <concrete action>
Step 2: <concrete action>
...

Notes:
- Every step must be a concrete executable action
- Mind dependencies between steps
- Prefer the most direct effective approach`

var planStepRe = regexp.MustCompile(`Step \d+:`)

// Plan asks the model for a numbered plan for the given task and parses the
// consecutive "Step N:" lines into an ordered list. The plan is a standalone,
// inspectable artifact; the reasoning loop never consumes it. Any failure
// yields an empty plan, never an error.
func (o *Orchestrator) Plan(ctx context.Context, task string) []string {
	tools := "none"
	if names := o.registry.Names(); len(names) > 0 {
		tools = strings.Join(names, ", ")
	}
	prompt := fmt.Sprintf(planningTemplate, task, tools)

	cctx := ctx
	if o.cfg.ModelTimeout > 0 {
		var cancel context.CancelFunc
		cctx, cancel = context.WithTimeout(ctx, o.cfg.ModelTimeout)
		defer cancel()
	}

	reply, err := model.Complete(cctx, o.caller, model.Request{Prompt: prompt, Temperature: o.cfg.Temperature})
	if err != nil {
		o.logger.Warn("planning call failed", "error", err)
		return nil
	}
	return parsePlan(reply)
}

// parsePlan slices the text between consecutive "Step N:" markers.
func parsePlan(text string) []string {
	locs := planStepRe.FindAllStringIndex(text, -1)
	if locs == nil {
		return nil
	}
	var steps []string
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if step := strings.TrimSpace(text[loc[1]:end]); step != "" {
			steps = append(steps, step)
		}
	}
	return steps
}
