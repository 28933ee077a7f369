package notification

import "errors"

var (
	ErrInvalidConfig     = errors.New("invalid notification config")
	ErrFailedToSend      = errors.New("failed to send notification")
	ErrRecipientNotFound = errors.New("notification recipient not found")
	ErrUnknownEventType  = errors.New("unknown notification event type")
)
