package fleet

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaUnavailable marks a quota service failure. Callers degrade to a
	// zero-quota assumption instead of failing the invocation.
	ErrQuotaUnavailable = errors.New("quota information unavailable")

	// ErrGroupNotFound marks a capacity-managed group that does not exist on
	// the provider side. Fatal to the invocation; never retried.
	ErrGroupNotFound = errors.New("capacity-managed group not found")
)

// InvalidInstanceClassError rejects a resolution request before any quota is
// consulted: the class is malformed or unknown to the catalog.
type InvalidInstanceClassError struct {
	Name   string
	Reason string
}

func (e *InvalidInstanceClassError) Error() string {
	return fmt.Sprintf("invalid instance class '%s': %s", e.Name, e.Reason)
}
