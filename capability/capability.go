// Package capability implements the tool calling subsystem that lets the
// reasoning loop invoke named external functions (retrieval, file I/O, web
// search, ...) behind one uniform contract with consistent error handling.
package capability

import "fmt"

// Param describes one declared parameter of a capability. The declaration is
// rendered into the model prompt so the model knows how to shape its
// Action Input block.
type Param struct {
	Name        string `json:"name"`
	Type        string `json:"type"` // "string", "number", "boolean", ...
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// Result is the outcome of one capability invocation. Output carries the text
// re-injected into the reasoning transcript as the observation; Data carries
// structured payloads for programmatic consumers.
type Result struct {
	Success  bool           `json:"success"`
	Output   string         `json:"output"`
	Data     map[string]any `json:"data,omitempty"`
	Error    string         `json:"error,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Capability defines the interface for extending the reasoning loop with
// external functions.
//
// Implementations should:
//   - Provide clear, descriptive names and descriptions (snake_case names recommended)
//   - Declare their parameters so the model prompt can describe them
//   - Handle their own I/O timeouts; the orchestrator treats every invocation
//     as an opaque, potentially blocking call
//   - Be safe for concurrent use, the registry is shared across runs
type Capability interface {
	// Name returns the unique identifier used in Action directives.
	Name() string

	// Description returns a human-readable description shown to the model.
	Description() string

	// Params returns the declared parameter list.
	Params() []Param

	// Invoke executes the capability with arguments parsed from the model's
	// Action Input block. A returned error is converted by the orchestrator
	// into a failing observation; it never aborts the run.
	Invoke(args map[string]any) (Result, error)
}

// InvokeError represents errors that occur during capability execution.
type InvokeError struct {
	Capability string `json:"capability"`
	Message    string `json:"message"`
	Code       string `json:"code"`
}

func (e *InvokeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("capability error [%s] in %s: %s", e.Code, e.Capability, e.Message)
	}
	return fmt.Sprintf("capability error in %s: %s", e.Capability, e.Message)
}

// NewInvokeError creates a new InvokeError with the specified details.
func NewInvokeError(capability, message, code string) *InvokeError {
	return &InvokeError{Capability: capability, Message: message, Code: code}
}

// TextResult is a convenience constructor for a successful text-only result.
func TextResult(output string) Result {
	return Result{Success: true, Output: output}
}

// ErrorResult is a convenience constructor for a failed result.
func ErrorResult(msg string) Result {
	return Result{Success: false, Error: msg}
}
