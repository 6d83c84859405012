package sources

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

// NHC reads the hurricane center's active-storms JSON. Classification
// comes as a two-letter code plus sustained wind intensity in knots;
// both are folded into the free-text classification the cyclone ladder
// understands.
type NHC struct {
	client
	url string
}

func NewNHC(url string, timeout time.Duration) *NHC {
	return &NHC{client: newClient(timeout), url: url}
}

func (n *NHC) Code() string { return "nhc" }

type nhcResponse struct {
	ActiveStorms []nhcStorm `json:"activeStorms"`
}

type nhcStorm struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Classification string  `json:"classification"` // TD, TS, HU, MH
	Intensity      string  `json:"intensity"`      // knots
	Latitude       float64 `json:"latitudeNumeric"`
	Longitude      float64 `json:"longitudeNumeric"`
	MovementSpeed  int     `json:"movementSpeed"`
	LastUpdate     string  `json:"lastUpdate"`
}

func (n *NHC) Fetch(ctx context.Context) ([]models.RawObservation, error) {
	var data nhcResponse
	if err := n.getJSON(ctx, n.url, &data); err != nil {
		return nil, err
	}

	obs := make([]models.RawObservation, 0, len(data.ActiveStorms))
	skipped := 0
	for _, s := range data.ActiveStorms {
		if s.ID == "" {
			skipped++
			continue
		}

		updated, err := time.Parse(time.RFC3339, s.LastUpdate)
		if err != nil {
			updated = time.Now().UTC()
		}

		level := classificationText(s.Classification, s.Intensity)
		obs = append(obs, models.RawObservation{
			ExternalID:   s.ID,
			DisasterType: models.DisasterTypeStorm,
			Title:        fmt.Sprintf("%s %s", level, s.Name),
			Description:  fmt.Sprintf("%s %s, sustained winds %s kt", level, s.Name, s.Intensity),
			LocationName: s.Name,
			Lat:          ptr(s.Latitude),
			Lng:          ptr(s.Longitude),
			RawLevel:     level,
			PublishedAt:  updated,
			Metadata:     map[string]string{"intensity_kt": s.Intensity},
		})
	}
	if skipped > 0 {
		slog.Warn("skipped malformed storms", "source", n.Code(), "count", skipped)
	}

	return obs, nil
}

// classificationText reconstructs the advisory wording from the storm
// code and the Saffir-Simpson wind bands.
func classificationText(code, intensity string) string {
	kt, _ := strconv.Atoi(intensity)
	switch code {
	case "TD", "STD":
		return "Tropical Depression"
	case "TS", "STS":
		return "Tropical Storm"
	case "HU", "MH", "TY":
		switch {
		case kt >= 137:
			return "Category 5 Hurricane"
		case kt >= 113:
			return "Category 4 Hurricane"
		case kt >= 96:
			return "Category 3 Hurricane"
		case kt >= 83:
			return "Category 2 Hurricane"
		default:
			return "Category 1 Hurricane"
		}
	default:
		return "Tropical Depression"
	}
}
