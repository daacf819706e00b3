package llm

import (
	"context"
	"errors"
	"fmt"
)

// ErrTimeout marks an external call that exceeded its deadline.
// It is kept distinct from hard failures so callers can retry with backoff.
var ErrTimeout = errors.New("external call timed out")

// WrapTimeout tags err with ErrTimeout when it was caused by a deadline.
// Other errors, including nil, are returned unchanged.
func WrapTimeout(err error) error {
	if err == nil || errors.Is(err, ErrTimeout) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
