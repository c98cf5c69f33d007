package pricing

import (
	"errors"
	"fmt"
)

// BytesPerGB is the binary gigabyte used for storage billing.
const BytesPerGB = 1 << 30

// Schedule is the per-tenant monthly pricing policy.
type Schedule struct {
	BaseCost            float64
	CostPerUser         float64
	CostPerGB           float64
	CostPer1000APICalls float64
}

func DefaultSchedule() Schedule {
	return Schedule{
		BaseCost:            50.0,
		CostPerUser:         5.0,
		CostPerGB:           0.10,
		CostPer1000APICalls: 1.0,
	}
}

func (s Schedule) Validate() error {
	if s.BaseCost < 0 || s.CostPerUser < 0 || s.CostPerGB < 0 || s.CostPer1000APICalls < 0 {
		return errors.New("pricing rates must not be negative")
	}
	return nil
}

// Breakdown decomposes a monthly cost into its pricing components together
// with the counters that produced them.
type Breakdown struct {
	BaseCost      float64
	UserCost      float64
	StorageCost   float64
	APICost       float64
	TotalUsers    int64
	StorageGB     float64
	TotalAPICalls int64
}

func (b Breakdown) Total() float64 {
	return b.BaseCost + b.UserCost + b.StorageCost + b.APICost
}

// Model turns raw counters into a monthly cost. It holds no state besides
// the schedule and is safe for concurrent use.
type Model struct {
	schedule Schedule
}

func NewModel(schedule Schedule) (*Model, error) {
	if err := schedule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pricing schedule: %w", err)
	}
	return &Model{schedule: schedule}, nil
}

func (m *Model) Schedule() Schedule {
	return m.schedule
}

// Cost returns the unrounded monthly cost for the given counters.
func (m *Model) Cost(users, storageBytes, apiCalls int64) float64 {
	return m.Breakdown(users, storageBytes, apiCalls).Total()
}

func (m *Model) Breakdown(users, storageBytes, apiCalls int64) Breakdown {
	storageGB := StorageGB(storageBytes)
	return Breakdown{
		BaseCost:      m.schedule.BaseCost,
		UserCost:      float64(users) * m.schedule.CostPerUser,
		StorageCost:   storageGB * m.schedule.CostPerGB,
		APICost:       float64(apiCalls) / 1000.0 * m.schedule.CostPer1000APICalls,
		TotalUsers:    users,
		StorageGB:     storageGB,
		TotalAPICalls: apiCalls,
	}
}

func StorageGB(storageBytes int64) float64 {
	return float64(storageBytes) / BytesPerGB
}
