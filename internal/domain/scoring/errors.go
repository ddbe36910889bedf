package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	// ErrDimensionMismatch means an encoded vector does not line up with the
	// model weights. It signals encoder/model drift, never bad user input.
	ErrDimensionMismatch = errors.New("feature vector dimension mismatch")
	ErrInvalidModel      = errors.New("invalid model parameters")
)
