// Package model defines the model-calling collaborator contract used by the
// reasoning orchestrator plus a scripted in-memory implementation for tests
// and examples. Concrete provider adapters live in the subpackages
// model/openai and model/anthropic.
package model

import "errors"

// ErrScriptExhausted is returned by ScriptedCaller once all scripted
// completions have been consumed.
var ErrScriptExhausted = errors.New("scripted caller: no completions left")
