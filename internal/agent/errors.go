package agent

import "errors"

var (
	// ErrParse is returned when the model keeps answering outside the step
	// grammar and the parse retry budget is spent.
	ErrParse = errors.New("agent output could not be parsed")

	// ErrMaxIterations is returned when no final answer was produced within
	// the configured number of tool steps.
	ErrMaxIterations = errors.New("agent stopped after max iterations")
)
