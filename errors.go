package isat

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is returned by Add when the tree has already reached
// Config.MaxElements. The caller's freshly computed mapping result is not
// lost: the caller already holds it and can use it directly without a
// cache entry.
var ErrCapacityExceeded = errors.New("isat: capacity exceeded")

// ErrDegenerateEOA is returned when constructing an ellipsoid of accuracy
// fails numerically (a zero or near-zero column norm during QR, or an SVD
// that does not converge). The triggering insertion is aborted; the tree is
// left exactly as it was before the call. Grow has no error path.
var ErrDegenerateEOA = errors.New("isat: degenerate ellipsoid of accuracy")

// ErrInconsistentTree signals a violated structural invariant (e.g. a
// leaf's back-pointer does not match the node that is supposed to own it).
// It is never expected during normal operation; callers should treat its
// panic (see panicInconsistent) as a programming-bug report, not a
// recoverable condition.
var ErrInconsistentTree = errors.New("isat: inconsistent tree invariant")

// panicInconsistent panics with ErrInconsistentTree wrapped with context.
// Structural invariant violations are not represented as returned errors:
// they indicate a bug in this package, not a caller mistake.
func panicInconsistent(context string) {
	panic(fmt.Errorf("%s: %w", context, ErrInconsistentTree))
}
