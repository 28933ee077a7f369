package audit

import "errors"

var (
	ErrEventValidation = errors.New("audit event validation failed")
	ErrStorageFailed   = errors.New("audit storage operation failed")
	ErrBufferFull      = errors.New("audit event buffer full")
)
