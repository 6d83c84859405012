package api

import (
	"github.com/geowatch/disaster-watch/internal/models"
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

func toGeoJSON(events []models.DisasterEvent) FeatureCollection {
	features := make([]Feature, 0, len(events))

	for _, e := range events {
		props := map[string]any{
			"id":           e.ID,
			"disasterType": string(e.DisasterType),
			"title":        e.Title,
			"description":  e.Description,
			"severity":     e.Severity,
			"source":       e.Source,
			"externalId":   e.ExternalID,
			"locationName": e.LocationName,
			"locationHash": e.LocationHash,
			"radiusKm":     e.RadiusKm,
			"eventTime":    e.EventTime,
			"expiresAt":    e.ExpiresAt,
		}
		if e.Magnitude != nil {
			props["magnitude"] = *e.Magnitude
		}
		if e.Depth != nil {
			props["depth"] = *e.Depth
		}

		features = append(features, Feature{
			Type: "Feature",
			Geometry: Geometry{
				Type:        "Point",
				Coordinates: []float64{e.Location.Lng, e.Location.Lat},
			},
			Properties: props,
		})
	}

	return FeatureCollection{
		Type:     "FeatureCollection",
		Features: features,
	}
}
