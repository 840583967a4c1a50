package tenant

import "errors"

var (
	ErrTenantNotFound  = errors.New("tenant not found")
	ErrTenantNotActive = errors.New("tenant is not active")
	ErrMaxPoolLimit    = errors.New("tenant pool limit reached")
)
