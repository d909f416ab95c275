package core

import "errors"

// Errors
var (
	ErrInvalidOrder         = errors.New("invalid order")
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidSnapshot      = errors.New("invalid snapshot")
	ErrNoSnapshot           = errors.New("no snapshot")
)
