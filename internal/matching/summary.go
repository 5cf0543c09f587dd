package matching

import (
	"github.com/mr1hm/go-relief-triage/internal/models"
)

type NeedItem struct {
	Resource string              `json:"type"`
	Quantity string              `json:"quantity"`
	Urgency  models.UrgencyLevel `json:"urgency"`
}

type LocationNeeds struct {
	Location     string              `json:"location"`
	Needs        []NeedItem          `json:"needs"`
	UrgencyLevel models.UrgencyLevel `json:"urgency_level"`
}

// NeedsSummary groups open needs by location in first-seen order. A
// group's level is CRITICAL if any item is, else HIGH if any item is,
// else LOW.
func NeedsSummary(needs []models.Need) []LocationNeeds {
	var order []string
	groups := make(map[string]*LocationNeeds)

	for _, n := range needs {
		if n.Status != models.NeedOpen {
			continue
		}
		g, ok := groups[n.Location]
		if !ok {
			g = &LocationNeeds{Location: n.Location, UrgencyLevel: models.UrgencyLow}
			groups[n.Location] = g
			order = append(order, n.Location)
		}
		g.Needs = append(g.Needs, NeedItem{Resource: n.Resource, Quantity: n.Quantity, Urgency: n.Urgency})

		switch {
		case n.Urgency == models.UrgencyCritical:
			g.UrgencyLevel = models.UrgencyCritical
		case n.Urgency == models.UrgencyHigh && g.UrgencyLevel != models.UrgencyCritical:
			g.UrgencyLevel = models.UrgencyHigh
		}
	}

	out := make([]LocationNeeds, 0, len(order))
	for _, loc := range order {
		out = append(out, *groups[loc])
	}
	return out
}

type NeedMatches struct {
	NeedID          string              `json:"need_id"`
	Resource        string              `json:"need_type"`
	QuantityNeeded  string              `json:"quantity_needed"`
	Urgency         models.UrgencyLevel `json:"urgency"`
	AvailableDonors []DonorMatch        `json:"available_donors"`
	TotalAvailable  int                 `json:"total_available"`
}

// DonationMatches lists, for every open need posted at location, the
// donors that could cover it.
func (m *Matcher) DonationMatches(location string, needs []models.Need, donors []models.Donation, maxKm float64) []NeedMatches {
	out := []NeedMatches{}
	for _, n := range needs {
		if n.Location != location || n.Status != models.NeedOpen {
			continue
		}
		found := m.NeedsNearDonors(n, donors, maxKm)
		out = append(out, NeedMatches{
			NeedID:          n.ID,
			Resource:        n.Resource,
			QuantityNeeded:  n.Quantity,
			Urgency:         n.Urgency,
			AvailableDonors: found,
			TotalAvailable:  len(found),
		})
	}
	return out
}

// DefaultSafeZones are the relief hubs seeded into an empty store.
func DefaultSafeZones() []models.SafeZone {
	return []models.SafeZone{
		{
			ID:            "zone_anna_nagar",
			Location:      "Anna Nagar",
			Status:        models.SafeZoneSafe,
			Resources:     []string{"food", "water", "medical supplies"},
			ContactPerson: "Community Center - Anna Nagar",
			ContactNumber: "+91-9123456780",
		},
		{
			ID:            "zone_t_nagar",
			Location:      "T Nagar",
			Status:        models.SafeZoneSafe,
			Resources:     []string{"shelter", "food", "clothing"},
			ContactPerson: "Relief Center - T Nagar",
			ContactNumber: "+91-9123456781",
		},
		{
			ID:            "zone_adyar",
			Location:      "Adyar",
			Status:        models.SafeZoneSafe,
			Resources:     []string{"medical supplies", "water", "generators"},
			ContactPerson: "Adyar Relief Hub",
			ContactNumber: "+91-9123456782",
		},
		{
			ID:            "zone_porur",
			Location:      "Porur",
			Status:        models.SafeZoneSafe,
			Resources:     []string{"food", "blankets", "hygiene kits"},
			ContactPerson: "Porur Community Hall",
			ContactNumber: "+91-9123456783",
		},
	}
}
