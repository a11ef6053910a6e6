package api

import (
	"strings"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/models"
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

// toGeoJSON renders each alert as a Point at its center; clients draw the
// circle from radius_m.
func toGeoJSON(live []models.Alert) FeatureCollection {
	features := make([]Feature, 0, len(live))

	for _, a := range live {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{a.CenterLon, a.CenterLat},
			},
			Properties: map[string]any{
				"id":          a.ID,
				"hazard_type": strings.ToLower(string(a.HazardType)),
				"title":       a.Severity.Display() + " " + a.HazardType.Display(),
				"emoji":       a.HazardType.Emoji(),
				"severity":    strings.ToLower(string(a.Severity)),
				"radius_m":    a.RadiusM,
				"status":      strings.ToLower(string(a.Status)),
				"score":       a.Score,
				"source":      a.Source,
				"valid_until": a.ValidUntil.UTC().Format(time.RFC3339),
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
