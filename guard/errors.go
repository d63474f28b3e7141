package guard

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports a declaration that can never be locked.
	ErrConfiguration = errors.New("invalid lock declaration")
	// ErrInvalidLockModel reports a single-key model declared with several keys.
	ErrInvalidLockModel = errors.New("lock model does not accept several keys")
	// ErrUnsupportedCombination reports a model and key count with no lock topology.
	ErrUnsupportedCombination = fmt.Errorf("%w: unsupported lock model", ErrConfiguration)
	// ErrExpression reports a key expression that failed to evaluate.
	ErrExpression = errors.New("lock key expression failed")
	// ErrLockAcquisition reports a lock that was not acquired within its wait window.
	ErrLockAcquisition = errors.New("failed to acquire lock")
	// ErrLockRelease reports a lock that could not be released after the operation succeeded.
	ErrLockRelease = errors.New("failed to release lock")
)

// ExpressionError carries the key expression that failed.
type ExpressionError struct {
	Expression string
	Err        error
}

func (e *ExpressionError) Error() string {
	return fmt.Sprintf("lock key expression %q: %v", e.Expression, e.Err)
}

func (e *ExpressionError) Unwrap() []error {
	return []error{ErrExpression, e.Err}
}
