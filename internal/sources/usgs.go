package sources

import (
	"context"
	"log/slog"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

// USGS reads the global earthquake summary GeoJSON feed.
type USGS struct {
	client
	url string
}

func NewUSGS(url string, timeout time.Duration) *USGS {
	return &USGS{client: newClient(timeout), url: url}
}

func (u *USGS) Code() string { return "usgs" }

type usgsResponse struct {
	Features []usgsFeature `json:"features"`
}

type usgsFeature struct {
	ID         string         `json:"id"`
	Properties usgsProperties `json:"properties"`
	Geometry   usgsGeometry   `json:"geometry"`
}
type usgsProperties struct {
	Mag     float64 `json:"mag"`
	Place   string  `json:"place"`
	Time    int64   `json:"time"` // unix millis
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Tsunami int     `json:"tsunami"` // 0 or 1
}
type usgsGeometry struct {
	Coordinates []float64 `json:"coordinates"` // [lon, lat, depth]
}

func (u *USGS) Fetch(ctx context.Context) ([]models.RawObservation, error) {
	var data usgsResponse
	if err := u.getJSON(ctx, u.url, &data); err != nil {
		return nil, err
	}

	obs := make([]models.RawObservation, 0, len(data.Features))
	skipped := 0
	for _, f := range data.Features {
		if f.ID == "" || len(f.Geometry.Coordinates) < 2 {
			skipped++
			continue
		}

		o := models.RawObservation{
			ExternalID:   f.ID,
			DisasterType: models.DisasterTypeEarthquake,
			Title:        f.Properties.Title,
			Description:  f.Properties.Place,
			LocationName: f.Properties.Place,
			Lng:          ptr(f.Geometry.Coordinates[0]),
			Lat:          ptr(f.Geometry.Coordinates[1]),
			Magnitude:    ptr(f.Properties.Mag),
			Link:         f.Properties.URL,
			PublishedAt:  time.UnixMilli(f.Properties.Time),
		}
		if len(f.Geometry.Coordinates) > 2 {
			o.Depth = ptr(f.Geometry.Coordinates[2])
		}
		if f.Properties.Tsunami == 1 {
			o.Metadata = map[string]string{"tsunami": "1"}
		}
		obs = append(obs, o)
	}
	if skipped > 0 {
		slog.Warn("skipped malformed features", "source", u.Code(), "count", skipped)
	}

	return obs, nil
}
