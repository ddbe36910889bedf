package artifact

import "errors"

// Sentinel kinds for artifact errors.
var (
	// ErrModelLoad wraps every failure from Load. It is fatal at startup.
	ErrModelLoad    = errors.New("model load failed")
	ErrMalformed    = errors.New("malformed model artifact")
	ErrMissingField = errors.New("model artifact missing field")
	ErrFeatureOrder = errors.New("model artifact feature layout mismatch")
)
