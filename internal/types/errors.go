package types

import "errors"

var (
	// ErrFeed marks a factor/price feed failure; the cycle aborts.
	ErrFeed = errors.New("feed error")
	// ErrOrder marks a broker rejection or connectivity failure on one symbol.
	ErrOrder = errors.New("order error")
	// ErrUnknownStrategy is returned when no strategy is registered under a name.
	ErrUnknownStrategy = errors.New("unknown strategy")
	// ErrInsufficientHistory is returned when a series is too short to evaluate.
	ErrInsufficientHistory = errors.New("insufficient history")
)
