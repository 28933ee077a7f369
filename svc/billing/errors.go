package billing

import "errors"

var (
	ErrPlanCatalogNotFound    = errors.New("plan catalog file not found")
	ErrInvalidPlanCatalog     = errors.New("invalid plan catalog")
	ErrMissingAddressResolver = errors.New("email notifications enabled but no address resolver provided")
)
