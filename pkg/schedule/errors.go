package schedule

import "errors"

var (
	ErrJobAlreadyRegistered = errors.New("job with this name already registered")
	ErrNoJobsRegistered     = errors.New("runner has no jobs registered")
	ErrJobNameRequired      = errors.New("job name is required")
	ErrJobFuncRequired      = errors.New("job function is required")
)
