package api

import (
	"github.com/mr1hm/go-relief-triage/internal/geo"
	"github.com/mr1hm/go-relief-triage/internal/models"
)

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}
type Feature struct {
	Type       string         `json:"type"`
	Geometry   Geometry       `json:"geometry"`
	Properties map[string]any `json:"properties"`
}
type Geometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// toGeoJSON plots the requests whose location resolves. The rest are left
// off the map.
func toGeoJSON(requests []models.Request, index *geo.Index) FeatureCollection {
	features := make([]Feature, 0, len(requests))

	for _, r := range requests {
		c, ok := index.Resolve(r.Analysis.Location)
		if !ok {
			continue
		}
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{c.Longitude, c.Latitude},
			},
			Properties: map[string]any{
				"id":            r.ID,
				"location":      geo.StripGPS(r.Analysis.Location),
				"need_type":     r.Analysis.Need,
				"needs_list":    r.Analysis.NeedsList,
				"total_score":   r.Priority.TotalScore,
				"urgency_level": r.Priority.UrgencyLevel,
				"status":        r.Status,
				"received_at":   r.ReceivedAt,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
