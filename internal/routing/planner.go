package routing

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/mr1hm/go-relief-triage/internal/geo"
	"github.com/mr1hm/go-relief-triage/internal/matching"
	"github.com/mr1hm/go-relief-triage/internal/models"
)

const (
	QualityPerfect = "Perfect"
	QualityGood    = "Good"
)

const (
	coverageWeight = 0.7
	distanceWeight = 0.3
	messagePreview = 100
)

// Route pairs one urgent request with the donation that best covers it.
type Route struct {
	RequestID          string              `json:"message_id"`
	MessageText        string              `json:"message_text"`
	PriorityScore      float64             `json:"priority_score"`
	UrgencyLevel       models.UrgencyLevel `json:"urgency_level"`
	RequestLocation    string              `json:"request_location"`
	NeededResources    []string            `json:"needed_resources"`
	PeopleCount        *int                `json:"people_count"`
	DonationID         string              `json:"donation_id"`
	DonorName          string              `json:"donor_name"`
	DonorLocation      string              `json:"donor_location"`
	AvailableResources []string            `json:"available_resources"`
	MatchedResources   []string            `json:"matched_resources"`
	DistanceKm         float64             `json:"distance_km"`
	EstimatedTime      string              `json:"estimated_time"`
	MatchQuality       string              `json:"match_quality"`
	MatchScore         float64             `json:"match_score"`
}

type candidate struct {
	donation models.Donation
	coords   geo.Coordinates
}

// PlanRoutes picks, for every CRITICAL or HIGH request with a needs list
// and a GPS-tagged location, the available donation with the best match
// score. Donations are not reserved: several requests may be paired with
// the same donation in one pass.
func PlanRoutes(requests []models.Request, donations []models.Donation) []Route {
	var candidates []candidate
	for _, d := range donations {
		if !d.Available() || len(d.Resources) == 0 {
			continue
		}
		c, ok := geo.ParseGPS(d.Location)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate{donation: d, coords: c})
	}

	routes := []Route{}
	for _, req := range requests {
		if !req.Priority.UrgencyLevel.Urgent() || len(req.Analysis.NeedsList) == 0 {
			continue
		}
		origin, ok := geo.ParseGPS(req.Analysis.Location)
		if !ok {
			continue
		}
		if r, ok := bestRoute(req, origin, candidates); ok {
			routes = append(routes, r)
		}
	}

	// closest-urgent-first
	slices.SortStableFunc(routes, func(a, b Route) int {
		if c := cmp.Compare(b.PriorityScore, a.PriorityScore); c != 0 {
			return c
		}
		return cmp.Compare(a.DistanceKm, b.DistanceKm)
	})
	return routes
}

func bestRoute(req models.Request, origin geo.Coordinates, candidates []candidate) (Route, bool) {
	needed := req.Analysis.NeedsList

	var (
		best      *candidate
		bestScore float64
		bestDist  float64
		bestMatch []string
	)
	for i := range candidates {
		c := &candidates[i]
		matched := MatchResources(needed, c.donation.Resources)
		if len(matched) == 0 {
			continue
		}

		dist := geo.Haversine(origin, c.coords)
		coverage := float64(len(matched)) / float64(len(needed)) * 100
		distanceScore := math.Max(0, 100-dist)
		score := coverage*coverageWeight + distanceScore*distanceWeight

		// strict comparison: the first candidate wins exact ties
		if best == nil || score > bestScore {
			best, bestScore, bestDist, bestMatch = c, score, dist, matched
		}
	}
	if best == nil {
		return Route{}, false
	}

	quality := QualityGood
	if len(bestMatch) == len(needed) {
		quality = QualityPerfect
	}
	donor := best.donation.DonorName
	if donor == "" {
		donor = "Anonymous"
	}

	return Route{
		RequestID:          req.ID,
		MessageText:        preview(req.Message),
		PriorityScore:      req.Priority.TotalScore,
		UrgencyLevel:       req.Priority.UrgencyLevel,
		RequestLocation:    geo.StripGPS(req.Analysis.Location),
		NeededResources:    needed,
		PeopleCount:        req.Analysis.PeopleCount,
		DonationID:         best.donation.ID,
		DonorName:          donor,
		DonorLocation:      geo.StripGPS(best.donation.Location),
		AvailableResources: best.donation.Resources,
		MatchedResources:   bestMatch,
		DistanceKm:         bestDist,
		EstimatedTime:      EstimateTime(bestDist),
		MatchQuality:       quality,
		MatchScore:         math.Round(bestScore*100) / 100,
	}, true
}

// MatchResources returns the needed items that at least one offered item
// covers.
func MatchResources(needed, offered []string) []string {
	var matched []string
	for _, n := range needed {
		if matching.Offers(offered, n) {
			matched = append(matched, n)
		}
	}
	return matched
}

// EstimateTime is minutes for short hops and hours for long hauls.
func EstimateTime(distanceKm float64) string {
	if distanceKm < 10 {
		return fmt.Sprintf("%d minutes", int(distanceKm*2))
	}
	return fmt.Sprintf("%d hours", int(distanceKm/40))
}

func preview(s string) string {
	runes := []rune(s)
	if len(runes) <= messagePreview {
		return s
	}
	return string(runes[:messagePreview])
}
