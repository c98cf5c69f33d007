package report

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWindow = errors.New("invalid report window")
	ErrInvalidTenant = errors.New("invalid tenant")
)

// OpError attaches the failing operation and tenant to an error from a
// collaborator. The underlying error stays reachable through errors.Is/As.
type OpError struct {
	Op       string
	TenantID string
	Err      error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s for tenant %q: %v", e.Op, e.TenantID, e.Err)
}

func (e *OpError) Unwrap() error { return e.Err }
