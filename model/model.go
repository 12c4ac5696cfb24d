package model

import (
	"context"
	"strings"
	"sync"
)

// Request captures one normalized model call: a fully rendered prompt plus a
// streaming flag. Non-streaming calls yield a single final Response; streaming
// calls yield partial fragments that concatenate to the same text, followed by
// a final Response carrying the complete output.
type Request struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature,omitempty"`
	Stream      bool    `json:"stream,omitempty"`
}

// Response is a (partial or final) chunk emitted by a model call.
type Response struct {
	Partial bool   `json:"partial"`
	Text    string `json:"text"`
}

// Info contains metadata about a model implementation.
type Info struct {
	Name     string `json:"name"`
	Provider string `json:"provider"` // "openai", "anthropic", "scripted", ...
}

// Caller is the minimal interface required to drive generation. No dependency
// on a specific provider: the reasoning loop only ever sees prompt text in and
// completion text out.
//
// Implementations must close both channels when the call terminates and send
// terminal errors on the error channel (buffered size 1).
type Caller interface {
	Generate(ctx context.Context, req Request) (<-chan Response, <-chan error)

	// Info returns information about the model implementation.
	Info() Info
}

// Complete drains a non-streaming Generate call and returns the full
// completion text. It is the convenience path used by every advisory model
// call (reflection, planning, intent analysis).
func Complete(ctx context.Context, c Caller, req Request) (string, error) {
	req.Stream = false
	respCh, errCh := c.Generate(ctx, req)
	var b strings.Builder
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case resp, ok := <-respCh:
			if !ok {
				if err, open := <-errCh; open && err != nil {
					return "", err
				}
				return b.String(), nil
			}
			if !resp.Partial {
				// Final response carries the complete text.
				b.Reset()
				b.WriteString(resp.Text)
			}
		case err, ok := <-errCh:
			if ok && err != nil {
				return "", err
			}
		}
	}
}

// ScriptedCaller is a lightweight in-memory Caller useful for tests and
// examples. Each Generate call consumes the next scripted completion in
// order; when streaming, the completion is delivered as its scripted
// fragments (or as a single fragment when none were declared).
type ScriptedCaller struct {
	mu      sync.Mutex
	info    Info
	scripts []script
	next    int
	err     error
}

type script struct {
	fragments []string
}

// NewScriptedCaller constructs a ScriptedCaller with the given completions,
// each delivered whole.
func NewScriptedCaller(completions ...string) *ScriptedCaller {
	c := &ScriptedCaller{info: Info{Name: "scripted", Provider: "scripted"}}
	for _, text := range completions {
		c.scripts = append(c.scripts, script{fragments: []string{text}})
	}
	return c
}

// AddCompletion appends a completion delivered as one fragment.
func (c *ScriptedCaller) AddCompletion(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = append(c.scripts, script{fragments: []string{text}})
}

// AddFragments appends a completion delivered as the given fragments when the
// request streams. The fragments concatenate to the full completion text.
func (c *ScriptedCaller) AddFragments(fragments ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts = append(c.scripts, script{fragments: fragments})
}

// FailWith makes every subsequent Generate call terminate with err.
func (c *ScriptedCaller) FailWith(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.err = err
}

// Generate implements Caller.
func (c *ScriptedCaller) Generate(ctx context.Context, req Request) (<-chan Response, <-chan error) {
	respCh := make(chan Response, 16)
	errCh := make(chan error, 1)

	c.mu.Lock()
	failure := c.err
	var s script
	if failure == nil {
		if c.next >= len(c.scripts) {
			failure = ErrScriptExhausted
		} else {
			s = c.scripts[c.next]
			c.next++
		}
	}
	c.mu.Unlock()

	go func() {
		defer close(respCh)
		defer close(errCh)
		if failure != nil {
			errCh <- failure
			return
		}
		full := strings.Join(s.fragments, "")
		if req.Stream {
			for _, f := range s.fragments {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case respCh <- Response{Partial: true, Text: f}:
				}
			}
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case respCh <- Response{Partial: false, Text: full}:
		}
	}()
	return respCh, errCh
}

// Info implements Caller.
func (c *ScriptedCaller) Info() Info { return c.info }
