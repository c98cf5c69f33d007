package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/vnmchuo/tenant-reports/internal/report"
)

// money rounds an amount to cents for display. Engine values stay unrounded.
func money(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

type metricPoint struct {
	Date      time.Time `json:"date"`
	Users     int64     `json:"users"`
	Trips     int64     `json:"trips"`
	StorageGB float64   `json:"storageGB"`
	Cost      float64   `json:"cost"`
}

type tenantReportResponse struct {
	TenantID       string        `json:"tenantId"`
	TotalUsers     int64         `json:"totalUsers"`
	ActiveUsers    int64         `json:"activeUsers"`
	TotalTrips     int64         `json:"totalTrips"`
	TotalStorageGB float64       `json:"totalStorageGB"`
	TotalAPICalls  int64         `json:"totalApiCalls"`
	MonthlyCost    float64       `json:"monthlyCost"`
	TotalCost      float64       `json:"totalCost"`
	LastUpdated    time.Time     `json:"lastUpdated"`
	Metrics        []metricPoint `json:"metrics"`
}

func newTenantReportResponse(r *report.TenantReport) tenantReportResponse {
	points := make([]metricPoint, len(r.Metrics))
	for i, p := range r.Metrics {
		points[i] = metricPoint{Date: p.Date, Users: p.Users, Trips: p.Trips, StorageGB: p.StorageGB, Cost: money(p.Cost)}
	}
	return tenantReportResponse{
		TenantID:       r.TenantID,
		TotalUsers:     r.TotalUsers,
		ActiveUsers:    r.ActiveUsers,
		TotalTrips:     r.TotalTrips,
		TotalStorageGB: r.TotalStorageGB,
		TotalAPICalls:  r.TotalAPICalls,
		MonthlyCost:    money(r.MonthlyCost),
		TotalCost:      money(r.TotalCost),
		LastUpdated:    r.LastUpdated,
		Metrics:        points,
	}
}

type userMetricPoint struct {
	Date        time.Time `json:"date"`
	TotalUsers  int64     `json:"totalUsers"`
	ActiveUsers int64     `json:"activeUsers"`
	NewUsers    int64     `json:"newUsers"`
}

type userMetricsResponse struct {
	TenantID          string            `json:"tenantId"`
	TotalUsers        int64             `json:"totalUsers"`
	ActiveUsers       int64             `json:"activeUsers"`
	NewUsersThisMonth int64             `json:"newUsersThisMonth"`
	NewUsersInPeriod  int64             `json:"newUsersInPeriod"`
	LastUpdated       time.Time         `json:"lastUpdated"`
	Metrics           []userMetricPoint `json:"metrics"`
}

func newUserMetricsResponse(m *report.UserMetrics) userMetricsResponse {
	points := make([]userMetricPoint, len(m.Metrics))
	for i, p := range m.Metrics {
		points[i] = userMetricPoint(p)
	}
	return userMetricsResponse{
		TenantID:          m.TenantID,
		TotalUsers:        m.TotalUsers,
		ActiveUsers:       m.ActiveUsers,
		NewUsersThisMonth: m.NewUsersThisMonth,
		NewUsersInPeriod:  m.NewUsersInPeriod,
		LastUpdated:       m.LastUpdated,
		Metrics:           points,
	}
}

type tripMetricPoint struct {
	Date       time.Time `json:"date"`
	TotalTrips int64     `json:"totalTrips"`
	NewTrips   int64     `json:"newTrips"`
}

type tripMetricsResponse struct {
	TenantID       string            `json:"tenantId"`
	TotalTrips     int64             `json:"totalTrips"`
	TripsThisMonth int64             `json:"tripsThisMonth"`
	TripsInPeriod  int64             `json:"tripsInPeriod"`
	LastUpdated    time.Time         `json:"lastUpdated"`
	Metrics        []tripMetricPoint `json:"metrics"`
}

func newTripMetricsResponse(m *report.TripMetrics) tripMetricsResponse {
	points := make([]tripMetricPoint, len(m.Metrics))
	for i, p := range m.Metrics {
		points[i] = tripMetricPoint(p)
	}
	return tripMetricsResponse{
		TenantID:       m.TenantID,
		TotalTrips:     m.TotalTrips,
		TripsThisMonth: m.TripsThisMonth,
		TripsInPeriod:  m.TripsInPeriod,
		LastUpdated:    m.LastUpdated,
		Metrics:        points,
	}
}

type mediaMetricPoint struct {
	Date       time.Time `json:"date"`
	TotalMedia int64     `json:"totalMedia"`
	NewMedia   int64     `json:"newMedia"`
	StorageGB  float64   `json:"storageGB"`
}

type mediaMetricsResponse struct {
	TenantID       string             `json:"tenantId"`
	TotalMedia     int64              `json:"totalMedia"`
	MediaThisMonth int64              `json:"mediaThisMonth"`
	MediaInPeriod  int64              `json:"mediaInPeriod"`
	TotalStorageGB float64            `json:"totalStorageGB"`
	LastUpdated    time.Time          `json:"lastUpdated"`
	Metrics        []mediaMetricPoint `json:"metrics"`
}

func newMediaMetricsResponse(m *report.MediaMetrics) mediaMetricsResponse {
	points := make([]mediaMetricPoint, len(m.Metrics))
	for i, p := range m.Metrics {
		points[i] = mediaMetricPoint(p)
	}
	return mediaMetricsResponse{
		TenantID:       m.TenantID,
		TotalMedia:     m.TotalMedia,
		MediaThisMonth: m.MediaThisMonth,
		MediaInPeriod:  m.MediaInPeriod,
		TotalStorageGB: m.TotalStorageGB,
		LastUpdated:    m.LastUpdated,
		Metrics:        points,
	}
}

type socialMetricPoint struct {
	Date              time.Time `json:"date"`
	Likes             int64     `json:"likes"`
	Comments          int64     `json:"comments"`
	TotalInteractions int64     `json:"totalInteractions"`
	NewInteractions   int64     `json:"newInteractions"`
}

type socialMetricsResponse struct {
	TenantID              string              `json:"tenantId"`
	TotalLikes            int64               `json:"totalLikes"`
	TotalComments         int64               `json:"totalComments"`
	TotalInteractions     int64               `json:"totalInteractions"`
	InteractionsThisMonth int64               `json:"interactionsThisMonth"`
	InteractionsInPeriod  int64               `json:"interactionsInPeriod"`
	LastUpdated           time.Time           `json:"lastUpdated"`
	Metrics               []socialMetricPoint `json:"metrics"`
}

func newSocialMetricsResponse(m *report.SocialMetrics) socialMetricsResponse {
	points := make([]socialMetricPoint, len(m.Metrics))
	for i, p := range m.Metrics {
		points[i] = socialMetricPoint(p)
	}
	return socialMetricsResponse{
		TenantID:              m.TenantID,
		TotalLikes:            m.TotalLikes,
		TotalComments:         m.TotalComments,
		TotalInteractions:     m.TotalInteractions,
		InteractionsThisMonth: m.InteractionsThisMonth,
		InteractionsInPeriod:  m.InteractionsInPeriod,
		LastUpdated:           m.LastUpdated,
		Metrics:               points,
	}
}

type costBreakdown struct {
	BaseCost       float64 `json:"baseCost"`
	UserCost       float64 `json:"userCost"`
	StorageCost    float64 `json:"storageCost"`
	APICost        float64 `json:"apiCost"`
	TotalUsers     int64   `json:"totalUsers"`
	TotalStorageGB float64 `json:"totalStorageGB"`
	TotalAPICalls  int64   `json:"totalApiCalls"`
}

// Rates are returned as configured; only amounts are rounded.
type pricingResponse struct {
	TenantID            string        `json:"tenantId"`
	BaseCost            float64       `json:"baseCost"`
	CostPerUser         float64       `json:"costPerUser"`
	CostPerGB           float64       `json:"costPerGB"`
	CostPer1000APICalls float64       `json:"costPer1000ApiCalls"`
	CurrentMonthlyCost  float64       `json:"currentMonthlyCost"`
	TotalCost           float64       `json:"totalCost"`
	CostBreakdown       costBreakdown `json:"costBreakdown"`
	LastUpdated         time.Time     `json:"lastUpdated"`
}

func newPricingResponse(p *report.Pricing) pricingResponse {
	b := p.Breakdown
	return pricingResponse{
		TenantID:            p.TenantID,
		BaseCost:            p.Rates.BaseCost,
		CostPerUser:         p.Rates.CostPerUser,
		CostPerGB:           p.Rates.CostPerGB,
		CostPer1000APICalls: p.Rates.CostPer1000APICalls,
		CurrentMonthlyCost:  money(p.CurrentMonthlyCost),
		TotalCost:           money(p.TotalCost),
		CostBreakdown: costBreakdown{
			BaseCost:       money(b.BaseCost),
			UserCost:       money(b.UserCost),
			StorageCost:    money(b.StorageCost),
			APICost:        money(b.APICost),
			TotalUsers:     b.TotalUsers,
			TotalStorageGB: b.StorageGB,
			TotalAPICalls:  b.TotalAPICalls,
		},
		LastUpdated: p.LastUpdated,
	}
}
