package bounds

import "errors"

var (
	// ErrInvariant marks a broken monotonicity or malformed interval. It
	// signals a defect in the algorithm or the model and aborts a run.
	ErrInvariant = errors.New("bound invariant violated")

	// ErrInvalidArgument is returned when a store cannot represent a value,
	// such as a non-zero lower bound in an upper-only store.
	ErrInvalidArgument = errors.New("invalid argument")
)
