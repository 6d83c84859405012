package sources

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

// DMC scrapes the Chilean meteorological service's current-warnings
// page. The page is plain HTML with no machine feed, so extraction is
// regex-heuristic and best-effort: a markup change degrades this
// adapter to zero observations, nothing else.
//
// Warnings carry no explicit point. Per provider convention they are
// assigned the national centroid below, deterministically, so repeated
// scrapes of the same warning produce the same observation.
type DMC struct {
	client
	url string
}

// National centroid used when a warning has no explicit point.
const (
	dmcCentroidLat = -33.45
	dmcCentroidLng = -70.66
)

func NewDMC(url string, timeout time.Duration) *DMC {
	return &DMC{client: newClient(timeout), url: url}
}

func (d *DMC) Code() string { return "dmc" }

// Warning rows look like:
//
//	<div class="aviso-item nivel-alerta">
//	  <span class="nivel">Alerta</span>
//	  <span class="titulo">Viento normal a moderado</span>
//	  <span class="zona">Regiones de Valparaíso a Maule</span>
//	</div>
var dmcWarnRe = regexp.MustCompile(`(?is)<div[^>]*class="[^"]*aviso-item[^"]*"[^>]*>.*?<span[^>]*class="[^"]*nivel[^"]*"[^>]*>([^<]+)</span>.*?<span[^>]*class="[^"]*titulo[^"]*"[^>]*>([^<]+)</span>.*?<span[^>]*class="[^"]*zona[^"]*"[^>]*>([^<]+)</span>.*?</div>`)

func (d *DMC) Fetch(ctx context.Context) ([]models.RawObservation, error) {
	page, err := d.getBody(ctx, d.url)
	if err != nil {
		return nil, err
	}

	matches := dmcWarnRe.FindAllStringSubmatch(page, -1)
	now := time.Now().UTC()

	obs := make([]models.RawObservation, 0, len(matches))
	for _, m := range matches {
		level := strings.TrimSpace(m[1])
		title := strings.TrimSpace(m[2])
		zone := strings.TrimSpace(m[3])
		if title == "" {
			continue
		}

		obs = append(obs, models.RawObservation{
			// No provider GUID; level+title+zone identifies one
			// warning for the day it is active.
			ExternalID:   now.Format("20060102") + "_" + slug(level) + "_" + slug(title) + "_" + slug(zone),
			DisasterType: dmcDisasterType(title),
			Title:        level + ": " + title,
			Description:  title + " - " + zone,
			LocationName: zone,
			Lat:          ptr(dmcCentroidLat),
			Lng:          ptr(dmcCentroidLng),
			RawLevel:     level,
			PublishedAt:  now,
		})
	}
	if len(matches) == 0 {
		slog.Warn("no warning blocks matched, markup may have changed", "source", d.Code())
	}

	return obs, nil
}

func dmcDisasterType(title string) models.DisasterType {
	s := strings.ToLower(title)
	switch {
	case strings.Contains(s, "calor"):
		return models.DisasterTypeHeatwave
	case strings.Contains(s, "lluvia") || strings.Contains(s, "crecida") || strings.Contains(s, "desborde"):
		return models.DisasterTypeFlood
	case strings.Contains(s, "remoción") || strings.Contains(s, "aluvi"):
		return models.DisasterTypeLandslide
	default:
		return models.DisasterTypeStorm
	}
}
