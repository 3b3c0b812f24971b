package models

import "errors"

// ErrDimensionMismatch means a vector does not have the configured
// dimensionality. It signals a configuration bug and is never retried.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")
