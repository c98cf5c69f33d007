package source

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const auditMetricsService = "/traversium.audit.metrics.AuditMetricsService/"

// GRPCSource calls the audit metrics service. It performs no retries of its
// own; wrap it with NewResilient for production use.
type GRPCSource struct {
	conn grpc.ClientConnInterface
}

// Dial opens a plaintext client connection to the audit metrics service.
func Dial(addr string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.ForceCodec(wireCodec{})),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics source client for %s: %w", addr, err)
	}
	return conn, nil
}

func NewGRPCSource(conn grpc.ClientConnInterface) *GRPCSource {
	return &GRPCSource{conn: conn}
}

func (s *GRPCSource) count(ctx context.Context, method string, req wireMessage) (int64, error) {
	var resp countResponse
	if err := s.conn.Invoke(ctx, auditMetricsService+method, req, &resp, grpc.ForceCodec(wireCodec{})); err != nil {
		return 0, err
	}
	return checkCount(method, resp.Count)
}

func (s *GRPCSource) tenantCount(ctx context.Context, method, tenantID string) (int64, error) {
	return s.count(ctx, method, &metricsRequest{TenantID: tenantID})
}

func (s *GRPCSource) rangeCount(ctx context.Context, method, tenantID string, start, end time.Time) (int64, error) {
	if err := checkRange(start, end); err != nil {
		return 0, err
	}
	return s.count(ctx, method, &dateRangeRequest{
		TenantID:  tenantID,
		StartDate: start.Format(time.RFC3339Nano),
		EndDate:   end.Format(time.RFC3339Nano),
	})
}

func (s *GRPCSource) TotalUsersCreated(ctx context.Context, tenantID string) (int64, error) {
	return s.tenantCount(ctx, "GetTotalUsersCreated", tenantID)
}

func (s *GRPCSource) ActiveUsers(ctx context.Context, tenantID string, windowDays int) (int64, error) {
	return s.count(ctx, "GetActiveUsers", &activeUsersRequest{TenantID: tenantID, Days: int32(windowDays)})
}

func (s *GRPCSource) NewUsersInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	return s.rangeCount(ctx, "GetNewUsersInPeriod", tenantID, start, end)
}

func (s *GRPCSource) TotalTripsCreated(ctx context.Context, tenantID string) (int64, error) {
	return s.tenantCount(ctx, "GetTotalTripsCreated", tenantID)
}

func (s *GRPCSource) TripsCreatedInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	return s.rangeCount(ctx, "GetTripsCreatedInPeriod", tenantID, start, end)
}

func (s *GRPCSource) TotalMediaUploaded(ctx context.Context, tenantID string) (int64, error) {
	return s.tenantCount(ctx, "GetTotalMediaUploaded", tenantID)
}

func (s *GRPCSource) MediaUploadedInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	return s.rangeCount(ctx, "GetMediaUploadedInPeriod", tenantID, start, end)
}

func (s *GRPCSource) TotalStorageBytes(ctx context.Context, tenantID string) (int64, error) {
	return s.tenantCount(ctx, "GetTotalStorageBytes", tenantID)
}

func (s *GRPCSource) TotalLikes(ctx context.Context, tenantID string) (int64, error) {
	return s.tenantCount(ctx, "GetTotalLikes", tenantID)
}

func (s *GRPCSource) TotalComments(ctx context.Context, tenantID string) (int64, error) {
	return s.tenantCount(ctx, "GetTotalComments", tenantID)
}

func (s *GRPCSource) SocialInteractionsInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	return s.rangeCount(ctx, "GetSocialInteractionsInPeriod", tenantID, start, end)
}

func (s *GRPCSource) TotalAPICalls(ctx context.Context, tenantID string) (int64, error) {
	return s.tenantCount(ctx, "GetTotalApiCalls", tenantID)
}

func (s *GRPCSource) APICallsInRange(ctx context.Context, tenantID string, start, end time.Time) (int64, error) {
	return s.rangeCount(ctx, "GetApiCallsInPeriod", tenantID, start, end)
}

var _ Source = (*GRPCSource)(nil)
