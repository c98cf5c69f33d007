package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vnmchuo/tenant-reports/internal/resilience"
	"github.com/vnmchuo/tenant-reports/internal/telemetry"
)

// Retryable reports whether a failure from the metrics source is transient.
// Explicit rejections (not found, invalid argument, auth) are permanent.
func Retryable(err error) bool {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return true
	case errors.Is(err, context.Canceled),
		errors.Is(err, ErrInvalidRange),
		errors.Is(err, ErrSourceInvalidResponse):
		return false
	}

	st, ok := status.FromError(err)
	if !ok {
		// Not a gRPC status: dial or transport failure below the RPC layer.
		return true
	}
	switch st.Code() {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted,
		codes.Aborted, codes.Internal, codes.Unknown:
		return true
	}
	return false
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded) || status.Code(err) == codes.DeadlineExceeded
}

// isCanceled covers both a cancelled context and the Canceled status grpc
// returns for it.
func isCanceled(err error) bool {
	return errors.Is(err, context.Canceled) || status.Code(err) == codes.Canceled
}

// Resilient decorates a Source with a resilience policy and translates
// failures into the source error taxonomy.
type Resilient struct {
	next    Source
	policy  *resilience.Policy
	logger  *zap.Logger
	metrics *telemetry.Metrics
}

func NewResilient(next Source, policy *resilience.Policy, logger *zap.Logger, metrics *telemetry.Metrics) *Resilient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resilient{next: next, policy: policy, logger: logger, metrics: metrics}
}

func (r *Resilient) call(ctx context.Context, method, tenantID string, fn func(ctx context.Context) (int64, error)) (int64, error) {
	var count int64
	err := r.policy.Do(ctx, method, func(ctx context.Context) error {
		c, err := fn(ctx)
		if err != nil {
			return err
		}
		count = c
		return nil
	})
	if err != nil {
		outcome, classified := classify(method, err)
		r.metrics.SourceCall(method, outcome)
		r.logger.Warn("metrics source call failed",
			zap.String("method", method),
			zap.String("tenant_id", tenantID),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
		return 0, classified
	}

	r.metrics.SourceCall(method, "ok")
	return count, nil
}

func classify(method string, err error) (string, error) {
	var retryErr *resilience.RetryError
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return "unavailable", fmt.Errorf("%w: %s: %w", ErrSourceUnavailable, method, err)
	case errors.Is(err, ErrInvalidRange), errors.Is(err, ErrSourceInvalidResponse):
		return "invalid", err
	case errors.As(err, &retryErr):
		if isTimeout(retryErr.Err) {
			return "timeout", fmt.Errorf("%w: %s: %w", ErrSourceTimeout, method, err)
		}
		return "transient", fmt.Errorf("%w: %s: %w", ErrSourceTransient, method, err)
	case errors.Is(err, context.Canceled):
		return "cancelled", fmt.Errorf("%s: %w", method, err)
	case isCanceled(err):
		return "cancelled", fmt.Errorf("%s: %w: %w", method, context.Canceled, err)
	default:
		return "invalid", fmt.Errorf("%w: %s: %w", ErrSourceInvalidRequest, method, err)
	}
}

func (r *Resilient) TotalUsersCreated(ctx context.Context, tenantID string) (int64, error) {
	return r.call(ctx, "GetTotalUsersCreated", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TotalUsersCreated(ctx, tenantID)
	})
}

func (r *Resilient) ActiveUsers(ctx context.Context, tenantID string, windowDays int) (int64, error) {
	return r.call(ctx, "GetActiveUsers", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.ActiveUsers(ctx, tenantID, windowDays)
	})
}

func (r *Resilient) NewUsersInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	return r.call(ctx, "GetNewUsersInPeriod", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.NewUsersInRange(ctx, tenantID, start, end)
	})
}

func (r *Resilient) TotalTripsCreated(ctx context.Context, tenantID string) (int64, error) {
	return r.call(ctx, "GetTotalTripsCreated", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TotalTripsCreated(ctx, tenantID)
	})
}

func (r *Resilient) TripsCreatedInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	return r.call(ctx, "GetTripsCreatedInPeriod", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TripsCreatedInRange(ctx, tenantID, start, end)
	})
}

func (r *Resilient) TotalMediaUploaded(ctx context.Context, tenantID string) (int64, error) {
	return r.call(ctx, "GetTotalMediaUploaded", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TotalMediaUploaded(ctx, tenantID)
	})
}

func (r *Resilient) MediaUploadedInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	return r.call(ctx, "GetMediaUploadedInPeriod", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.MediaUploadedInRange(ctx, tenantID, start, end)
	})
}

func (r *Resilient) TotalStorageBytes(ctx context.Context, tenantID string) (int64, error) {
	return r.call(ctx, "GetTotalStorageBytes", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TotalStorageBytes(ctx, tenantID)
	})
}

func (r *Resilient) TotalLikes(ctx context.Context, tenantID string) (int64, error) {
	return r.call(ctx, "GetTotalLikes", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TotalLikes(ctx, tenantID)
	})
}

func (r *Resilient) TotalComments(ctx context.Context, tenantID string) (int64, error) {
	return r.call(ctx, "GetTotalComments", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TotalComments(ctx, tenantID)
	})
}

func (r *Resilient) SocialInteractionsInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	return r.call(ctx, "GetSocialInteractionsInPeriod", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.SocialInteractionsInRange(ctx, tenantID, start, end)
	})
}

func (r *Resilient) TotalAPICalls(ctx context.Context, tenantID string) (int64, error) {
	return r.call(ctx, "GetTotalApiCalls", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.TotalAPICalls(ctx, tenantID)
	})
}

func (r *Resilient) APICallsInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	return r.call(ctx, "GetApiCallsInPeriod", tenantID, func(ctx context.Context) (int64, error) {
		return r.next.APICallsInRange(ctx, tenantID, start, end)
	})
}

var _ Source = (*Resilient)(nil)
