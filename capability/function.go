package capability

import "fmt"

// FunctionCapability is a generic adapter that exposes a plain Go function as
// a capability.
//
// Responsibilities:
//   - Holds the declared parameter list rendered into the model prompt
//   - Checks required parameters before execution (missing-required handling
//     is the capability's own responsibility, not the orchestrator's)
//   - Normalizes error handling so callers receive *InvokeError with
//     consistent codes:
//     MISSING_PARAMETER -> a required argument was absent
//     EXECUTION_ERROR   -> the wrapped function returned a plain error
//     (custom codes preserved if the function returns *InvokeError directly)
//
// A FunctionCapability has no internal mutable state after construction and is
// safe for concurrent use by multiple goroutines, provided the wrapped
// function is.
type FunctionCapability struct {
	name        string
	description string
	params      []Param
	fn          func(args map[string]any) (Result, error)
}

// NewFunction constructs a FunctionCapability from an explicit parameter
// declaration and implementation.
//
// Example:
//
//	search := NewFunction(
//	  "rag_search",
//	  "Search the local knowledge base",
//	  []Param{
//	    {Name: "query", Type: "string", Description: "Search query", Required: true},
//	    {Name: "top_k", Type: "number", Description: "Number of hits"},
//	  },
//	  func(args map[string]any) (Result, error) {
//	    q, _ := args["query"].(string)
//	    return TextResult("results for " + q), nil
//	  },
//	)
func NewFunction(
	name, description string,
	params []Param,
	fn func(args map[string]any) (Result, error),
) *FunctionCapability {
	return &FunctionCapability{
		name:        name,
		description: description,
		params:      params,
		fn:          fn,
	}
}

// Name returns the unique capability name used in Action directives.
func (c *FunctionCapability) Name() string { return c.name }

// Description returns the description shown to the model.
func (c *FunctionCapability) Description() string { return c.description }

// Params returns the declared parameter list.
func (c *FunctionCapability) Params() []Param {
	out := make([]Param, len(c.params))
	copy(out, c.params)
	return out
}

// Invoke checks required arguments then executes the wrapped function.
func (c *FunctionCapability) Invoke(args map[string]any) (Result, error) {
	if args == nil {
		args = map[string]any{}
	}
	for _, p := range c.params {
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			err := NewInvokeError(c.name, fmt.Sprintf("missing required parameter %q", p.Name), "MISSING_PARAMETER")
			return ErrorResult(err.Error()), err
		}
	}
	res, err := c.fn(args)
	if err != nil {
		if _, ok := err.(*InvokeError); !ok {
			err = NewInvokeError(c.name, err.Error(), "EXECUTION_ERROR")
		}
		if res.Error == "" {
			res = ErrorResult(err.Error())
		}
		return res, err
	}
	return res, nil
}
