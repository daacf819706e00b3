// Package tools defines the capability interface used by the agent, a
// registry of named tools, and the builtin tools.
package tools

import (
	"context"
	"errors"
	"fmt"
)

// Tool is a named capability the agent can invoke.
type Tool interface {
	// Name is the unique identifier the model uses to select the tool.
	Name() string
	// Description is injected verbatim into the agent prompt.
	Description() string
	// Run executes the tool. Structured input arrives as JSON text.
	Run(ctx context.Context, input string) (string, error)
}

// ErrToolNotFound is returned when no tool is registered under a name.
var ErrToolNotFound = errors.New("tool not found")

// ExecutionError reports a failed tool run.
type ExecutionError struct {
	Tool string
	Err  error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// Info describes a registered tool.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
