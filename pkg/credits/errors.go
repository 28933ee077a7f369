package credits

import "errors"

var (
	ErrInsufficientCredits = errors.New("insufficient credits for debit")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
	ErrReasonRequired      = errors.New("credit mutation reason is required")
)
