package api

import (
	"strings"

	"github.com/mr1hm/ocean-sentinel/internal/models"
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

// toGeoJSON places each detection at its anomaly position.
func toGeoJSON(detections []models.Detection) FeatureCollection {
	features := make([]Feature, 0, len(detections))

	for _, d := range detections {
		f := Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{d.Longitude, d.Latitude},
			},
			Properties: map[string]any{
				"id":               d.ID,
				"location_id":      d.LocationID,
				"location_name":    d.LocationName,
				"risk_level":       strings.ToLower(string(d.RiskLevel)),
				"anomaly_level":    strings.ToLower(string(d.AnomalyLevel)),
				"confidence_score": d.Confidence,
				"risk_score":       d.RiskScore,
				"timestamp":        d.Timestamp,
			},
		}
		features = append(features, f)
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
