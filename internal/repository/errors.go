package repository

import "errors"

// ErrNoTenant is returned when a write is attempted without a tenant in the context
var ErrNoTenant = errors.New("no tenant in context")
