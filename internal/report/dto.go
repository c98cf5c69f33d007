package report

import (
	"time"

	"github.com/vnmchuo/tenant-reports/internal/pricing"
)

// Amounts in these types are unrounded; rounding is a presentation concern.

type TenantPoint struct {
	Date      time.Time
	Users     int64
	Trips     int64
	StorageGB float64
	Cost      float64
}

type TenantReport struct {
	TenantID       string
	TotalUsers     int64
	ActiveUsers    int64
	TotalTrips     int64
	TotalStorageGB float64
	TotalAPICalls  int64
	MonthlyCost    float64
	TotalCost      float64
	LastUpdated    time.Time
	Metrics        []TenantPoint
}

type UserPoint struct {
	Date        time.Time
	TotalUsers  int64
	ActiveUsers int64
	NewUsers    int64
}

type UserMetrics struct {
	TenantID          string
	TotalUsers        int64
	ActiveUsers       int64
	NewUsersThisMonth int64
	NewUsersInPeriod  int64
	LastUpdated       time.Time
	Metrics           []UserPoint
}

type TripPoint struct {
	Date       time.Time
	TotalTrips int64
	NewTrips   int64
}

type TripMetrics struct {
	TenantID       string
	TotalTrips     int64
	TripsThisMonth int64
	TripsInPeriod  int64
	LastUpdated    time.Time
	Metrics        []TripPoint
}

type MediaPoint struct {
	Date       time.Time
	TotalMedia int64
	NewMedia   int64
	StorageGB  float64
}

type MediaMetrics struct {
	TenantID       string
	TotalMedia     int64
	MediaThisMonth int64
	MediaInPeriod  int64
	TotalStorageGB float64
	LastUpdated    time.Time
	Metrics        []MediaPoint
}

type SocialPoint struct {
	Date              time.Time
	Likes             int64
	Comments          int64
	TotalInteractions int64
	NewInteractions   int64
}

type SocialMetrics struct {
	TenantID              string
	TotalLikes            int64
	TotalComments         int64
	TotalInteractions     int64
	InteractionsThisMonth int64
	InteractionsInPeriod  int64
	LastUpdated           time.Time
	Metrics               []SocialPoint
}

// Pricing reports the rate schedule, the latest snapshot's stored cost and a
// breakdown recomputed from that snapshot's counters.
type Pricing struct {
	TenantID           string
	Rates              pricing.Schedule
	CurrentMonthlyCost float64
	TotalCost          float64
	Breakdown          pricing.Breakdown
	LastUpdated        time.Time
}
