package sources

import (
	"context"
	"log/slog"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

// EONET reads the satellite event tracker's open events endpoint.
// The tracker reports observations, not graded alerts, so everything
// it yields carries a flat moderate level; its value is coverage of
// wildfires and storms the other feeds miss.
type EONET struct {
	client
	url string
}

func NewEONET(url string, timeout time.Duration) *EONET {
	return &EONET{client: newClient(timeout), url: url}
}

func (e *EONET) Code() string { return "eonet" }

type eonetResponse struct {
	Events []eonetEvent `json:"events"`
}

type eonetEvent struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	Link       string          `json:"link"`
	Categories []eonetCategory `json:"categories"`
	Geometry   []eonetGeometry `json:"geometry"`
}
type eonetCategory struct {
	ID string `json:"id"`
}
type eonetGeometry struct {
	Date        string    `json:"date"`
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lng, lat] for points
}

func (e *EONET) Fetch(ctx context.Context) ([]models.RawObservation, error) {
	var data eonetResponse
	if err := e.getJSON(ctx, e.url, &data); err != nil {
		return nil, err
	}

	obs := make([]models.RawObservation, 0, len(data.Events))
	skipped := 0
	for _, ev := range data.Events {
		if ev.ID == "" || len(ev.Categories) == 0 {
			skipped++
			continue
		}

		disasterType := mapEONETCategory(ev.Categories[0].ID)
		if disasterType == models.DisasterTypeUnknown {
			skipped++
			continue
		}

		// Most recent point geometry wins.
		var point *eonetGeometry
		for i := len(ev.Geometry) - 1; i >= 0; i-- {
			if ev.Geometry[i].Type == "Point" && len(ev.Geometry[i].Coordinates) >= 2 {
				point = &ev.Geometry[i]
				break
			}
		}
		if point == nil {
			skipped++
			continue
		}

		published, err := time.Parse(time.RFC3339, point.Date)
		if err != nil {
			published = time.Now().UTC()
		}

		obs = append(obs, models.RawObservation{
			ExternalID:   ev.ID,
			DisasterType: disasterType,
			Title:        ev.Title,
			Description:  ev.Title,
			LocationName: ev.Title,
			Lng:          ptr(point.Coordinates[0]),
			Lat:          ptr(point.Coordinates[1]),
			Link:         ev.Link,
			PublishedAt:  published,
		})
	}
	if skipped > 0 {
		slog.Warn("skipped malformed events", "source", e.Code(), "count", skipped)
	}

	return obs, nil
}

func mapEONETCategory(id string) models.DisasterType {
	switch id {
	case "wildfires":
		return models.DisasterTypeWildfire
	case "severeStorms":
		return models.DisasterTypeStorm
	case "volcanoes":
		return models.DisasterTypeVolcano
	case "floods":
		return models.DisasterTypeFlood
	case "earthquakes":
		return models.DisasterTypeEarthquake
	case "landslides":
		return models.DisasterTypeLandslide
	default:
		return models.DisasterTypeUnknown
	}
}
