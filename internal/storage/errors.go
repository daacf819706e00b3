package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/bull/ragchain/internal/llm"
)

var (
	ErrUnreachable        = errors.New("vector store unreachable")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrDimensionMismatch  = errors.New("embedding dimension mismatch")
)

// wrapTimeout tags *err with llm.ErrTimeout when the call ran past its
// deadline. gRPC status errors do not wrap the context error, so ctx is
// consulted as well.
func wrapTimeout(ctx context.Context, err *error) {
	if *err == nil || errors.Is(*err, llm.ErrTimeout) {
		return
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		*err = fmt.Errorf("%w: %w", llm.ErrTimeout, *err)
		return
	}
	*err = llm.WrapTimeout(*err)
}
