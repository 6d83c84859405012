package models

import (
	"math"
	"time"
)

type DisasterType string

const (
	DisasterTypeEarthquake DisasterType = "earthquake"
	DisasterTypeTsunami    DisasterType = "tsunami"
	DisasterTypeVolcano    DisasterType = "volcano"
	DisasterTypeWildfire   DisasterType = "wildfire"
	DisasterTypeFlood      DisasterType = "flood"
	DisasterTypeStorm      DisasterType = "storm"
	DisasterTypeLandslide  DisasterType = "landslide"
	DisasterTypeHeatwave   DisasterType = "heatwave"
	DisasterTypeUnknown    DisasterType = "unknown"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinates are finite and inside the
// WGS-84 ranges. (0,0) is treated as a missing point: no feed here
// reports real events at null island, but broken payloads do.
func (l Location) Valid() bool {
	if math.IsNaN(l.Lat) || math.IsInf(l.Lat, 0) || math.IsNaN(l.Lng) || math.IsInf(l.Lng, 0) {
		return false
	}
	if l.Lat == 0 && l.Lng == 0 {
		return false
	}
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

// EventKey is the dedup identity of an event: one external event may be
// seen many times across ingestion cycles but (source, externalId) is
// stable per provider.
type EventKey struct {
	Source     string
	ExternalID string
}

type DisasterEvent struct {
	ID           string            `json:"id"`
	DisasterType DisasterType      `json:"disasterType"`
	Source       string            `json:"source"`
	ExternalID   string            `json:"externalId"`
	Title        string            `json:"title"`
	Description  string            `json:"description"`
	Severity     int               `json:"severity"`
	Location     Location          `json:"location"`
	LocationHash string            `json:"locationHash"`
	LocationName string            `json:"locationName"`
	RadiusKm     float64           `json:"radiusKm"`
	Magnitude    *float64          `json:"magnitude,omitempty"`
	Depth        *float64          `json:"depth,omitempty"`
	Metadata     map[string]string `json:"metadata"`
	EventTime    time.Time         `json:"eventTime"`
	ExpiresAt    time.Time         `json:"expiresAt"`
	CreatedAt    time.Time         `json:"createdAt"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

func (e *DisasterEvent) Key() EventKey {
	return EventKey{Source: e.Source, ExternalID: e.ExternalID}
}
