package sim

import "errors"

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrTowerNotFound     = errors.New("tower not found")
	ErrMaxLevel          = errors.New("tower already at max level")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrInvalidSpeed      = errors.New("unsupported game speed")
)
