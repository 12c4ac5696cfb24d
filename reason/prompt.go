package reason

import (
	"fmt"
	"strings"
	"time"
)

// Transcript roles. The transcript is an explicit ordered list of role/content
// entries rather than one mutable prompt string, so the wire format stays
// swappable and is never re-parsed.
const (
	roleUser      = "user"
	roleAssistant = "assistant"
)

type entry struct {
	Role    string
	Content string
}

// transcript is the append-only prompt buffer of one run.
type transcript struct {
	entries []entry
}

func newTranscript(initial string) *transcript {
	return &transcript{entries: []entry{{Role: roleUser, Content: initial}}}
}

func (t *transcript) append(role, content string) {
	t.entries = append(t.entries, entry{Role: role, Content: content})
}

// render flattens the transcript into the plain-text prompt consumed by the
// model caller.
func (t *transcript) render() string {
	parts := make([]string, 0, len(t.entries))
	for _, e := range t.entries {
		parts = append(parts, e.Content)
	}
	return strings.Join(parts, "\n\n")
}

// reactTemplate is the initial prompt: current time, prior conversation (or
// the "none" sentinel), the capability listing, the grounding rulebook and
// the question.
const reactTemplate = `You are a knowledge base assistant with access to external tools.

[System]
Current date and time: %s

[Prior conversation]
%s

[Available tools]
%s

[Core rules]
1. Check the prior conversation first: when the question refers to earlier turns ("what did I just ask", "the previous question"), answer from the prior conversation directly, without any tool.
2. Real-time information (weather, news, prices, latest events) must be fetched again with a tool, even if the prior conversation already contains an answer.
3. Your answer must be based only on tool observations or the prior conversation. Never use your own background knowledge.
4. If the observations contain no relevant information, say so explicitly instead of inventing one.
5. Never fabricate content, source names, URLs or data.

[Citation rules]
1. An answer taken from the prior conversation cites "source: conversation history".
2. Only URLs or file names that literally appear in an Observation may be cited as sources.
3. Never invent source names.

[Output format]
Thought: <your reasoning; first check whether the prior conversation already answers the question>
Action: <tool name>
Action Input: {"<param>": <value>, ...}

After each Observation, continue with another Thought. Exactly one Action per turn. When an Observation contains the answer, terminate with:

Thought: <closing reasoning>
Final Answer: <answer>
<citation line>

[Task]
Question: %s

Begin your reasoning (remember: answers and citations must come entirely from the prior conversation or tool observations):`

// noHistorySentinel replaces an empty prior-conversation block.
const noHistorySentinel = "none"

// continueInstruction is appended after every observation to resume the loop.
const continueInstruction = "Please continue reasoning:"

// reformatInstruction is the corrective re-prompt used when no directive was
// recognized in the model output.
const reformatInstruction = "No valid directive was recognized. Reply in the required format with either an Action or a Final Answer:"

// noActionObservation is recorded on steps that consumed an iteration on a
// format correction.
const noActionObservation = "no actionable directive recognized; re-prompted for correct format"

// finalAnswerObservation is recorded on the terminating step.
const finalAnswerObservation = "final answer reached"

func buildInitialPrompt(now time.Time, history, capabilities, question string) string {
	if strings.TrimSpace(history) == "" {
		history = noHistorySentinel
	}
	if strings.TrimSpace(capabilities) == "" {
		capabilities = noHistorySentinel
	}
	return fmt.Sprintf(reactTemplate, now.Format("2006-01-02 15:04:05"), history, capabilities, question)
}
