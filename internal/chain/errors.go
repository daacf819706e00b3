package chain

import (
	"errors"
	"fmt"
)

// Stage names a step of a chain invocation.
type Stage string

const (
	StageRephrase Stage = "rephrase"
	StageRetrieve Stage = "retrieve"
	StageGenerate Stage = "generate"
)

var (
	// ErrRephrase reports a failure while condensing the question.
	ErrRephrase = errors.New("rephrase failed")
	// ErrRetrieval reports a failure while fetching context.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrGeneration reports a failure while producing the answer, including mid-stream.
	ErrGeneration = errors.New("generation failed")
)

// StageError wraps the cause of a failed invocation with the stage it failed in.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the failed stage, so errors.Is(err, ErrRetrieval) works.
func (e *StageError) Is(target error) bool {
	switch e.Stage {
	case StageRephrase:
		return target == ErrRephrase
	case StageRetrieve:
		return target == ErrRetrieval
	case StageGenerate:
		return target == ErrGeneration
	}
	return false
}
