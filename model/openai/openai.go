// Package openai provides an implementation of model.Caller using the OpenAI
// Chat Completions API (including streaming). The rendered reasoning prompt is
// sent as a single user message; the protocol grammar lives entirely in the
// prompt text, so no function-calling surface is used.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/raglab/reagent/model"
)

// Options configure the OpenAI caller adapter. Fields mirror a subset of Chat
// Completion parameters intentionally kept minimal; extend via functional
// options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Caller wraps the OpenAI Chat Completions API behind the generic
// model.Caller interface.
type Caller struct {
	client *openai.Client
	opts   Options
}

// NewCaller creates a new OpenAI caller using the official client.
func NewCaller(optFns ...func(o *Options)) *Caller {
	client := openai.NewClient()
	return NewCallerFromClient(&client, optFns...)
}

// NewCallerFromClient creates a new OpenAI caller from an existing client.
func NewCallerFromClient(client *openai.Client, optFns ...func(o *Options)) *Caller {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Caller{client: client, opts: opts}
}

// Generate implements unified streaming / non-streaming generation.
func (c *Caller) Generate(ctx context.Context, req model.Request) (<-chan model.Response, <-chan error) {
	out := make(chan model.Response, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		params := c.buildParams(req)
		if req.Stream {
			c.handleStreaming(ctx, params, out, errCh)
			return
		}
		c.handleNonStreaming(ctx, params, out, errCh)
	}()
	return out, errCh
}

// Info implements model.Caller.
func (c *Caller) Info() model.Info {
	return model.Info{Name: c.opts.Model, Provider: "openai"}
}

func (c *Caller) buildParams(req model.Request) openai.ChatCompletionNewParams {
	temperature := c.opts.Temperature
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	return openai.ChatCompletionNewParams{
		Messages:            []openai.ChatCompletionMessageParamUnion{openai.UserMessage(req.Prompt)},
		Model:               c.opts.Model,
		Temperature:         openai.Float(temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}
}

// handleStreaming forwards text deltas as partial responses, then emits the
// accumulated full text as the final response.
func (c *Caller) handleStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	stream := c.client.Chat.Completions.NewStreaming(ctx, params)
	var full string
	for stream.Next() {
		ck := stream.Current()
		for _, ch := range ck.Choices {
			if ch.Delta.Content == "" {
				continue
			}
			full += ch.Delta.Content
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- model.Response{Partial: true, Text: ch.Delta.Content}:
			}
		}
	}
	if err := stream.Err(); err != nil {
		errCh <- fmt.Errorf("openai streaming error: %w", err)
		return
	}
	out <- model.Response{Partial: false, Text: full}
}

// handleNonStreaming processes a normal (non-streaming) completion.
func (c *Caller) handleNonStreaming(
	ctx context.Context,
	params openai.ChatCompletionNewParams,
	out chan<- model.Response,
	errCh chan<- error,
) {
	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		errCh <- fmt.Errorf("openai api error: %w", err)
		return
	}
	if len(resp.Choices) == 0 {
		errCh <- fmt.Errorf("openai api error: empty choice list")
		return
	}
	out <- model.Response{Partial: false, Text: resp.Choices[0].Message.Content}
}
