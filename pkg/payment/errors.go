package payment

import "errors"

var (
	ErrDeclined           = errors.New("payment declined by provider")
	ErrGatewayTimeout     = errors.New("payment gateway timed out")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")

	ErrMissingAPIKey        = errors.New("payment provider API key is required")
	ErrMissingInstrumentRef = errors.New("payment instrument reference is required")
	ErrInvalidEnvironment   = errors.New("invalid payment provider environment")
)

// IsChargeFailure reports whether err represents a failed charge attempt
// (declined, timed out, or gateway unreachable) as opposed to a caller error.
func IsChargeFailure(err error) bool {
	return errors.Is(err, ErrDeclined) ||
		errors.Is(err, ErrGatewayTimeout) ||
		errors.Is(err, ErrGatewayUnavailable)
}
