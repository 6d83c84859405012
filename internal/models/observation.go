package models

import "time"

// RawObservation is an adapter-local record: one item parsed out of a
// provider payload before classification and validation. It is never
// persisted.
type RawObservation struct {
	ExternalID   string
	DisasterType DisasterType
	Title        string
	Description  string
	LocationName string
	Lat          *float64
	Lng          *float64
	Magnitude    *float64 // seismic providers only
	Depth        *float64 // km, seismic providers only
	RawLevel     string   // provider-native category/alert-level text
	Link         string
	PublishedAt  time.Time
	Metadata     map[string]string
}

func (o *RawObservation) HasPoint() bool {
	return o.Lat != nil && o.Lng != nil
}
