// Package source is the gateway to the remote metering system. It owns no
// state: every call is a remote count query scoped to one tenant.
package source

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSourceUnavailable means the circuit breaker is open; back off and retry later.
	ErrSourceUnavailable = errors.New("metrics source unavailable")
	// ErrSourceTimeout means the retry budget was spent on timed-out attempts.
	ErrSourceTimeout = errors.New("metrics source timed out")
	// ErrSourceTransient means the retry budget was spent on transient failures.
	ErrSourceTransient = errors.New("metrics source transient failure")
	// ErrSourceInvalidRequest means the source rejected the query; retrying will not help.
	ErrSourceInvalidRequest = errors.New("metrics source rejected request")
	// ErrSourceInvalidResponse means the source answered with an impossible count.
	ErrSourceInvalidResponse = errors.New("metrics source returned invalid response")
	// ErrInvalidRange is returned before any remote call when start is after end.
	ErrInvalidRange = errors.New("invalid time range")
)

// Source answers count queries for a tenant. Range queries are half-open
// [start, end).
type Source interface {
	TotalUsersCreated(ctx context.Context, tenantID string) (int64, error)
	ActiveUsers(ctx context.Context, tenantID string, windowDays int) (int64, error)
	NewUsersInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error)

	TotalTripsCreated(ctx context.Context, tenantID string) (int64, error)
	TripsCreatedInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error)

	TotalMediaUploaded(ctx context.Context, tenantID string) (int64, error)
	MediaUploadedInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error)
	TotalStorageBytes(ctx context.Context, tenantID string) (int64, error)

	TotalLikes(ctx context.Context, tenantID string) (int64, error)
	TotalComments(ctx context.Context, tenantID string) (int64, error)
	SocialInteractionsInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error)

	TotalAPICalls(ctx context.Context, tenantID string) (int64, error)
	APICallsInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error)
}

func checkRange(start, end time.Time) error {
	if start.After(end) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func checkCount(method string, count int64) (int64, error) {
	if count < 0 {
		return 0, fmt.Errorf("%w: %s returned negative count %d", ErrSourceInvalidResponse, method, count)
	}
	return count, nil
}
