package model

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete_ReturnsFinalText(t *testing.T) {
	c := NewScriptedCaller("hello world")
	text, err := Complete(context.Background(), c, Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hello world", text)
}

func TestComplete_ConsumesScriptsInOrder(t *testing.T) {
	c := NewScriptedCaller("first", "second")
	text, err := Complete(context.Background(), c, Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", text)

	text, err = Complete(context.Background(), c, Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", text)
}

func TestComplete_ExhaustedScripts(t *testing.T) {
	c := NewScriptedCaller()
	_, err := Complete(context.Background(), c, Request{})
	assert.ErrorIs(t, err, ErrScriptExhausted)
}

func TestComplete_PropagatesFailure(t *testing.T) {
	c := NewScriptedCaller("unused")
	boom := errors.New("boom")
	c.FailWith(boom)
	_, err := Complete(context.Background(), c, Request{})
	assert.ErrorIs(t, err, boom)
}

func TestScriptedCaller_StreamsFragments(t *testing.T) {
	c := &ScriptedCaller{}
	c.AddFragments("Tho", "ught: a\nFinal ", "Answer: hi")

	respCh, errCh := c.Generate(context.Background(), Request{Stream: true})

	var partials []string
	final := ""
	for resp := range respCh {
		if resp.Partial {
			partials = append(partials, resp.Text)
		} else {
			final = resp.Text
		}
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, []string{"Tho", "ught: a\nFinal ", "Answer: hi"}, partials)
	assert.Equal(t, "Thought: a\nFinal Answer: hi", final)
}

func TestScriptedCaller_NonStreamingSkipsPartials(t *testing.T) {
	c := NewScriptedCaller("whole")
	respCh, errCh := c.Generate(context.Background(), Request{Stream: false})

	var responses []Response
	for resp := range respCh {
		responses = append(responses, resp)
	}
	require.NoError(t, <-errCh)
	require.Len(t, responses, 1)
	assert.False(t, responses[0].Partial)
	assert.Equal(t, "whole", responses[0].Text)
}

func TestScriptedCaller_Info(t *testing.T) {
	c := NewScriptedCaller()
	assert.Equal(t, "scripted", c.Info().Provider)
}
