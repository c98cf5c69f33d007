package report

import (
	"time"

	"github.com/vnmchuo/tenant-reports/internal/pricing"
	"github.com/vnmchuo/tenant-reports/internal/snapshot"
)

func tenantPoint(s *snapshot.Snapshot) TenantPoint {
	return TenantPoint{
		Date:      s.SnapshotAt,
		Users:     s.TotalUsers,
		Trips:     s.TotalTrips,
		StorageGB: pricing.StorageGB(s.TotalStorageBytes),
		Cost:      s.CalculatedCost,
	}
}

// tenantSeries maps historical snapshots to points and appends latest unless
// the last point is within a day of it.
func tenantSeries(historical []*snapshot.Snapshot, latest *snapshot.Snapshot) []TenantPoint {
	points := make([]TenantPoint, 0, len(historical)+1)
	for _, s := range historical {
		points = append(points, tenantPoint(s))
	}
	if latest == nil {
		return points
	}
	if len(points) == 0 || points[len(points)-1].Date.Before(latest.SnapshotAt.Add(-24*time.Hour)) {
		points = append(points, tenantPoint(latest))
	}
	return points
}

// deltas returns, for each snapshot, the increase of a cumulative counter
// since the previous one. baseline precedes snaps[0]; without it the first
// delta is 0. Decreases are reported as 0.
func deltas(snaps []*snapshot.Snapshot, baseline *snapshot.Snapshot, counter func(*snapshot.Snapshot) int64) []int64 {
	out := make([]int64, len(snaps))
	prev := baseline
	for i, s := range snaps {
		if prev != nil {
			if d := counter(s) - counter(prev); d > 0 {
				out[i] = d
			}
		}
		prev = s
	}
	return out
}

func userSeries(snaps []*snapshot.Snapshot, baseline *snapshot.Snapshot) []UserPoint {
	newUsers := deltas(snaps, baseline, func(s *snapshot.Snapshot) int64 { return s.TotalUsers })
	points := make([]UserPoint, len(snaps))
	for i, s := range snaps {
		points[i] = UserPoint{
			Date:        s.SnapshotAt,
			TotalUsers:  s.TotalUsers,
			ActiveUsers: s.ActiveUsers,
			NewUsers:    newUsers[i],
		}
	}
	return points
}

func tripSeries(snaps []*snapshot.Snapshot, baseline *snapshot.Snapshot) []TripPoint {
	newTrips := deltas(snaps, baseline, func(s *snapshot.Snapshot) int64 { return s.TotalTrips })
	points := make([]TripPoint, len(snaps))
	for i, s := range snaps {
		points[i] = TripPoint{Date: s.SnapshotAt, TotalTrips: s.TotalTrips, NewTrips: newTrips[i]}
	}
	return points
}

func mediaSeries(snaps []*snapshot.Snapshot, baseline *snapshot.Snapshot) []MediaPoint {
	newMedia := deltas(snaps, baseline, func(s *snapshot.Snapshot) int64 { return s.TotalMedia })
	points := make([]MediaPoint, len(snaps))
	for i, s := range snaps {
		points[i] = MediaPoint{
			Date:       s.SnapshotAt,
			TotalMedia: s.TotalMedia,
			NewMedia:   newMedia[i],
			StorageGB:  pricing.StorageGB(s.TotalStorageBytes),
		}
	}
	return points
}

func socialSeries(snaps []*snapshot.Snapshot, baseline *snapshot.Snapshot) []SocialPoint {
	newInteractions := deltas(snaps, baseline, (*snapshot.Snapshot).Interactions)
	points := make([]SocialPoint, len(snaps))
	for i, s := range snaps {
		points[i] = SocialPoint{
			Date:              s.SnapshotAt,
			Likes:             s.TotalLikes,
			Comments:          s.TotalComments,
			TotalInteractions: s.Interactions(),
			NewInteractions:   newInteractions[i],
		}
	}
	return points
}
