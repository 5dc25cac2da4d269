package domain

import (
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrAggregationFailed is surfaced when every customer in a batch failed.
	ErrAggregationFailed = errors.New("aggregation_failed")

	// ErrTenantIsolation means a computed record referenced a foreign tenant.
	// It aborts the whole request and is never silently skipped.
	ErrTenantIsolation = errors.New("tenant_isolation_violation")

	// ErrDependencyUnavailable wraps storage failures. The engine performs no
	// retries itself; retry policy belongs to the caller.
	ErrDependencyUnavailable = errors.New("dependency_unavailable")

	// ErrInvalidFollowUp rejects a follow-up whose next date is not after the
	// touch itself.
	ErrInvalidFollowUp = errors.New("invalid_follow_up")
)

// DataError marks a single customer's ledger row as uncomputable. The
// customer is skipped with a warning while the rest of the batch proceeds.
type DataError struct {
	CustomerID snowflake.ID
	Field      string
	Reason     string
}

func (e *DataError) Error() string {
	return fmt.Sprintf("data_error: customer=%s field=%s: %s", e.CustomerID, e.Field, e.Reason)
}

// AsDataError unwraps err into a *DataError if it is one.
func AsDataError(err error) (*DataError, bool) {
	var dataErr *DataError
	if errors.As(err, &dataErr) {
		return dataErr, true
	}
	return nil, false
}
