package utils

import "errors"

var ErrorRecordNotFound = errors.New("record not found")

// ErrInsufficientStock is returned by the FIFO planner when total available
// production stock cannot cover the required deduction (no partial deducts).
var ErrInsufficientStock = errors.New("insufficient production stock")
