package matching

import (
	"cmp"
	"slices"

	"github.com/mr1hm/go-relief-triage/internal/models"
)

// DefaultFamilyRadiusKm is the radius checked around each new emergency.
const DefaultFamilyRadiusKm = 10.0

// FamilyAlert flags a deployed responder whose family lives near an
// affected location.
type FamilyAlert struct {
	ResponderID    string              `json:"responder_id"`
	ResponderName  string              `json:"responder_name"`
	ResponderRole  string              `json:"responder_role"`
	FamilyLocation string              `json:"family_location"`
	FamilyMembers  []string            `json:"family_members"`
	DistanceKm     float64             `json:"distance_km"`
	Contact        string              `json:"contact"`
	LastStatus     models.FamilyStatus `json:"last_status"`
	AlertPriority  models.UrgencyLevel `json:"alert_priority"`
	AffectedZone   string              `json:"affected_zone"`
}

// FamilyAlertPriority ranks an at-risk family. A family that asked for
// help is always CRITICAL; otherwise closer is more urgent.
func FamilyAlertPriority(distanceKm float64, status models.FamilyStatus) models.UrgencyLevel {
	switch {
	case status == models.FamilyNeedsHelp:
		return models.UrgencyCritical
	case distanceKm < 2:
		return models.UrgencyHigh
	case distanceKm < 5:
		return models.UrgencyMedium
	default:
		return models.UrgencyLow
	}
}

// FamiliesNearAffectedZone returns the responder families within maxKm of
// an affected location, closest first. Families whose distance cannot be
// determined are left out.
func (m *Matcher) FamiliesNearAffectedZone(affected string, responders []models.Responder, maxKm float64) []FamilyAlert {
	alerts := []FamilyAlert{}
	for _, r := range responders {
		dist, ok := m.index.DistanceKm(affected, r.Family.Location)
		if !ok || dist > maxKm {
			continue
		}
		alerts = append(alerts, FamilyAlert{
			ResponderID:    r.ID,
			ResponderName:  r.Name,
			ResponderRole:  r.Role,
			FamilyLocation: r.Family.Location,
			FamilyMembers:  r.Family.Members,
			DistanceKm:     dist,
			Contact:        r.Family.Contact,
			LastStatus:     r.Family.Status,
			AlertPriority:  FamilyAlertPriority(dist, r.Family.Status),
			AffectedZone:   affected,
		})
	}

	slices.SortStableFunc(alerts, func(a, b FamilyAlert) int {
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return alerts
}
