// Package sourcetest provides an in-memory source.Source for tests.
package sourcetest

import (
	"context"
	"sync"
	"time"

	"github.com/vnmchuo/tenant-reports/internal/source"
)

// Counts is what the fake reports for a tenant. Range queries return the
// New* / Interactions fields regardless of the requested range.
type Counts struct {
	Users        int64
	ActiveUsers  int64
	NewUsers     int64
	Trips        int64
	NewTrips     int64
	Media        int64
	NewMedia     int64
	StorageBytes int64
	Likes        int64
	Comments     int64
	Interactions int64
	APICalls     int64
	NewAPICalls  int64
}

type Fake struct {
	mu sync.Mutex

	// Default is used for tenants without an entry in PerTenant.
	Default   Counts
	PerTenant map[string]Counts

	// Fail is consulted before every call; a non-nil error is returned
	// instead of the count.
	Fail func(method, tenantID string) error

	calls map[string]int
	seen  []string
}

func New(c Counts) *Fake {
	return &Fake{Default: c}
}

func (f *Fake) Set(tenantID string, c Counts) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PerTenant == nil {
		f.PerTenant = make(map[string]Counts)
	}
	f.PerTenant[tenantID] = c
}

// Calls returns how many times method was invoked, or all calls when method is "".
func (f *Fake) Calls(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if method == "" {
		total := 0
		for _, n := range f.calls {
			total += n
		}
		return total
	}
	return f.calls[method]
}

// Tenants returns the tenant of every call in order.
func (f *Fake) Tenants() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func (f *Fake) get(method, tenantID string, pick func(Counts) int64) (int64, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[method]++
	f.seen = append(f.seen, tenantID)
	c, ok := f.PerTenant[tenantID]
	if !ok {
		c = f.Default
	}
	fail := f.Fail
	f.mu.Unlock()

	if fail != nil {
		if err := fail(method, tenantID); err != nil {
			return 0, err
		}
	}
	return pick(c), nil
}

func (f *Fake) TotalUsersCreated(_ context.Context, tenantID string) (int64, error) {
	return f.get("GetTotalUsersCreated", tenantID, func(c Counts) int64 { return c.Users })
}

func (f *Fake) ActiveUsers(_ context.Context, tenantID string, _ int) (int64, error) {
	return f.get("GetActiveUsers", tenantID, func(c Counts) int64 { return c.ActiveUsers })
}

func (f *Fake) NewUsersInRange(_ context.Context, tenantID string, _, _ time.Time) (int64, error) {
	return f.get("GetNewUsersInPeriod", tenantID, func(c Counts) int64 { return c.NewUsers })
}

func (f *Fake) TotalTripsCreated(_ context.Context, tenantID string) (int64, error) {
	return f.get("GetTotalTripsCreated", tenantID, func(c Counts) int64 { return c.Trips })
}

func (f *Fake) TripsCreatedInRange(_ context.Context, tenantID string, _, _ time.Time) (int64, error) {
	return f.get("GetTripsCreatedInPeriod", tenantID, func(c Counts) int64 { return c.NewTrips })
}

func (f *Fake) TotalMediaUploaded(_ context.Context, tenantID string) (int64, error) {
	return f.get("GetTotalMediaUploaded", tenantID, func(c Counts) int64 { return c.Media })
}

func (f *Fake) MediaUploadedInRange(_ context.Context, tenantID string, _, _ time.Time) (int64, error) {
	return f.get("GetMediaUploadedInPeriod", tenantID, func(c Counts) int64 { return c.NewMedia })
}

func (f *Fake) TotalStorageBytes(_ context.Context, tenantID string) (int64, error) {
	return f.get("GetTotalStorageBytes", tenantID, func(c Counts) int64 { return c.StorageBytes })
}

func (f *Fake) TotalLikes(_ context.Context, tenantID string) (int64, error) {
	return f.get("GetTotalLikes", tenantID, func(c Counts) int64 { return c.Likes })
}

func (f *Fake) TotalComments(_ context.Context, tenantID string) (int64, error) {
	return f.get("GetTotalComments", tenantID, func(c Counts) int64 { return c.Comments })
}

func (f *Fake) SocialInteractionsInRange(_ context.Context, tenantID string, _, _ time.Time) (int64, error) {
	return f.get("GetSocialInteractionsInPeriod", tenantID, func(c Counts) int64 { return c.Interactions })
}

func (f *Fake) TotalAPICalls(_ context.Context, tenantID string) (int64, error) {
	return f.get("GetTotalApiCalls", tenantID, func(c Counts) int64 { return c.APICalls })
}

func (f *Fake) APICallsInRange(_ context.Context, tenantID string, _, _ time.Time) (int64, error) {
	return f.get("GetApiCallsInPeriod", tenantID, func(c Counts) int64 { return c.NewAPICalls })
}

var _ source.Source = (*Fake)(nil)
