package matching

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/mr1hm/go-relief-triage/internal/geo"
	"github.com/mr1hm/go-relief-triage/internal/models"
)

// Default search radii in km. Callers may pass their own.
const (
	DefaultDonorRadiusKm    = 15.0
	DefaultSafeZoneRadiusKm = 20.0
)

// travelSpeedKmh assumes degraded roads during a disaster.
const travelSpeedKmh = 20.0

type DonorMatch struct {
	models.Donation
	DistanceKm    float64 `json:"distance_km"`
	TravelMinutes int     `json:"travel_minutes"`
	EstimatedTime string  `json:"estimated_time"`
}

type ZoneMatch struct {
	models.SafeZone
	DistanceKm    float64 `json:"distance_km"`
	TravelMinutes int     `json:"travel_minutes"`
	EstimatedTime string  `json:"estimated_time"`
	AffectedArea  string  `json:"affected_area"`
}

type Matcher struct {
	index *geo.Index
}

func New(index *geo.Index) *Matcher {
	return &Matcher{index: index}
}

// ResourcesMatch compares two resource names case-insensitively, matching
// when either contains the other ("water" matches "clean water").
func ResourcesMatch(a, b string) bool {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Offers reports whether any offered resource matches the requested one.
func Offers(offered []string, requested string) bool {
	for _, o := range offered {
		if ResourcesMatch(o, requested) {
			return true
		}
	}
	return false
}

// NeedsNearDonors returns the available donors offering the needed
// resource within maxKm of the need, closest first. Donors whose distance
// cannot be determined are left out.
func (m *Matcher) NeedsNearDonors(need models.Need, donors []models.Donation, maxKm float64) []DonorMatch {
	matches := []DonorMatch{}
	for _, d := range donors {
		if !d.Available() || !Offers(d.Resources, need.Resource) {
			continue
		}
		dist, ok := m.index.DistanceKm(need.Location, d.Location)
		if !ok || dist > maxKm {
			continue
		}
		minutes := TravelMinutes(dist)
		matches = append(matches, DonorMatch{
			Donation:      d,
			DistanceKm:    dist,
			TravelMinutes: minutes,
			EstimatedTime: formatMinutes(minutes),
		})
	}

	slices.SortStableFunc(matches, func(a, b DonorMatch) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return matches
}

// DonorsNearAffectedZone returns the safe zones within maxKm of an
// affected location, closest first.
func (m *Matcher) DonorsNearAffectedZone(affected string, zones []models.SafeZone, maxKm float64) []ZoneMatch {
	matches := []ZoneMatch{}
	for _, z := range zones {
		if !z.Available() {
			continue
		}
		dist, ok := m.index.DistanceKm(affected, z.Location)
		if !ok || dist > maxKm {
			continue
		}
		minutes := TravelMinutes(dist)
		matches = append(matches, ZoneMatch{
			SafeZone:      z,
			DistanceKm:    dist,
			TravelMinutes: minutes,
			EstimatedTime: formatMinutes(minutes),
			AffectedArea:  affected,
		})
	}

	slices.SortStableFunc(matches, func(a, b ZoneMatch) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return matches
}

// TravelMinutes estimates whole minutes to cover distanceKm.
func TravelMinutes(distanceKm float64) int {
	return int(distanceKm / travelSpeedKmh * 60)
}

func formatMinutes(m int) string {
	return fmt.Sprintf("%d mins", m)
}
