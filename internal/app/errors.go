package service

import "errors"

// Sentinel error kinds for this package.
var (
	ErrModelMismatch = errors.New("model does not match encoder")
	ErrEmptyBatch    = errors.New("empty batch")
	ErrBatchTooLarge = errors.New("batch too large")
)
