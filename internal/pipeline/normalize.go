// Package pipeline turns raw provider observations into persisted
// canonical events: normalize, classify, dedup, batch-write.
package pipeline

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/geo"
	"github.com/geowatch/disaster-watch/internal/models"
	"github.com/geowatch/disaster-watch/internal/severity"
)

var (
	ErrInvalidCoordinates = errors.New("invalid coordinates")
	ErrUnknownType        = errors.New("unknown disaster type")
	ErrMissingExternalID  = errors.New("missing external id")
)

// retentionDays controls expiresAt per disaster type. Slow-moving
// phenomena stay visible longer.
var retentionDays = map[models.DisasterType]int{
	models.DisasterTypeEarthquake: 7,
	models.DisasterTypeTsunami:    3,
	models.DisasterTypeVolcano:    30,
	models.DisasterTypeWildfire:   14,
	models.DisasterTypeFlood:      14,
	models.DisasterTypeStorm:      7,
	models.DisasterTypeLandslide:  14,
	models.DisasterTypeHeatwave:   7,
}

const defaultRetentionDays = 7

type Normalizer struct {
	clock clockwork.Clock
}

func NewNormalizer(clock clockwork.Clock) *Normalizer {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Normalizer{clock: clock}
}

// Normalize converts one observation into a canonical event, or returns
// a skip error. Events it returns always satisfy the coordinate
// invariant; nothing else may reach the store.
func (n *Normalizer) Normalize(obs models.RawObservation, source string) (*models.DisasterEvent, error) {
	if obs.ExternalID == "" {
		return nil, ErrMissingExternalID
	}
	if obs.DisasterType == "" || obs.DisasterType == models.DisasterTypeUnknown {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, obs.DisasterType)
	}
	if !obs.HasPoint() {
		return nil, ErrInvalidCoordinates
	}

	loc := models.Location{Lat: *obs.Lat, Lng: *obs.Lng}
	if !loc.Valid() {
		return nil, fmt.Errorf("%w: (%v, %v)", ErrInvalidCoordinates, loc.Lat, loc.Lng)
	}

	sev := classify(source, obs)
	eventTime := obs.PublishedAt
	if eventTime.IsZero() {
		eventTime = n.clock.Now().UTC()
	}

	days, ok := retentionDays[obs.DisasterType]
	if !ok {
		days = defaultRetentionDays
	}

	e := &models.DisasterEvent{
		DisasterType: obs.DisasterType,
		Source:       source,
		ExternalID:   obs.ExternalID,
		Title:        obs.Title,
		Description:  obs.Description,
		Severity:     sev,
		Location:     loc,
		LocationHash: geo.Hash(loc.Lat, loc.Lng),
		LocationName: obs.LocationName,
		RadiusKm:     radiusKm(source, obs, sev),
		Magnitude:    obs.Magnitude,
		Depth:        obs.Depth,
		Metadata:     obs.Metadata,
		EventTime:    eventTime,
		ExpiresAt:    n.clock.Now().UTC().Add(time.Duration(days) * 24 * time.Hour),
	}
	if obs.Link != "" {
		if e.Metadata == nil {
			e.Metadata = map[string]string{}
		}
		e.Metadata["link"] = obs.Link
	}
	return e, nil
}

// classify applies the provider's own severity ladder. The ladders are
// not interchangeable across providers.
func classify(source string, obs models.RawObservation) int {
	switch source {
	case "usgs":
		if obs.Magnitude == nil {
			return 1
		}
		return severity.FromMagnitude(*obs.Magnitude)
	case "csn":
		if obs.Magnitude == nil {
			return 1
		}
		return severity.FromRegionalMagnitude(*obs.Magnitude)
	case "gdacs":
		return severity.FromGDACSAlert(obs.RawLevel)
	case "gvp":
		return severity.FromAlertColor(obs.RawLevel)
	case "nhc":
		return severity.FromCycloneCategory(obs.RawLevel)
	case "dmc":
		return severity.FromWarningLevel(obs.RawLevel)
	case "eonet":
		// satellite observations carry no grading
		return 2
	default:
		return 1
	}
}

// radiusKm derives the affected-area radius used by fan-out matching:
// generally max(floor, k × magnitude-or-severity) per provider.
func radiusKm(source string, obs models.RawObservation, sev int) float64 {
	switch source {
	case "usgs", "csn":
		if obs.Magnitude == nil {
			return 50
		}
		return math.Max(50, math.Round(*obs.Magnitude*20))
	case "gdacs":
		return math.Max(50, float64(sev)*60)
	case "nhc":
		return math.Max(150, float64(sev)*100)
	case "gvp":
		return math.Max(40, float64(sev)*30)
	case "dmc":
		return 80
	default:
		return 50
	}
}
