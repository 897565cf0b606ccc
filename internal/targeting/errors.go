package targeting

import "errors"

var (
	ErrRuleNotFound    = errors.New("targeting rule not found")
	ErrSegmentNotFound = errors.New("customer segment not found")
	ErrInvalidInput    = errors.New("invalid input")
)
