package sources

import (
	"context"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

// CSN scrapes the regional seismic network's recent-events page. The
// network publishes lower-magnitude events than the global feeds and
// grades them on its own regional ladder. No machine feed exists, so
// rows are extracted heuristically; a markup change degrades this
// adapter to zero observations.
type CSN struct {
	client
	url string
}

func NewCSN(url string, timeout time.Duration) *CSN {
	return &CSN{client: newClient(timeout), url: url}
}

func (c *CSN) Code() string { return "csn" }

// Event rows link to a detail page whose path segment is the event id:
//
//	<tr>
//	  <td><a href="/sismicidad/informes/2026/08/evt12345.html">2026-08-29 14:02:11</a></td>
//	  <td>-33.45</td><td>-70.66</td><td>104</td><td>6.2</td>
//	  <td>30 km al SO de Santiago</td>
//	</tr>
var csnRowRe = regexp.MustCompile(`(?is)<tr[^>]*>\s*<td[^>]*><a href="[^"]*/(\w+)\.html"[^>]*>([^<]+)</a></td>\s*<td[^>]*>([-\d.]+)</td>\s*<td[^>]*>([-\d.]+)</td>\s*<td[^>]*>([\d.]+)</td>\s*<td[^>]*>([\d.]+)</td>\s*<td[^>]*>([^<]*)</td>`)

func (c *CSN) Fetch(ctx context.Context) ([]models.RawObservation, error) {
	page, err := c.getBody(ctx, c.url)
	if err != nil {
		return nil, err
	}

	matches := csnRowRe.FindAllStringSubmatch(page, -1)
	obs := make([]models.RawObservation, 0, len(matches))
	skipped := 0
	for _, m := range matches {
		id := m[1]
		lat, err1 := strconv.ParseFloat(m[3], 64)
		lng, err2 := strconv.ParseFloat(m[4], 64)
		depth, err3 := strconv.ParseFloat(m[5], 64)
		mag, err4 := strconv.ParseFloat(m[6], 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			skipped++
			continue
		}

		occurred, err := time.Parse("2006-01-02 15:04:05", strings.TrimSpace(m[2]))
		if err != nil {
			occurred = time.Now().UTC()
		}
		place := strings.TrimSpace(m[7])

		obs = append(obs, models.RawObservation{
			ExternalID:   id,
			DisasterType: models.DisasterTypeEarthquake,
			Title:        "Sismo M" + m[6] + " - " + place,
			Description:  place,
			LocationName: place,
			Lat:          ptr(lat),
			Lng:          ptr(lng),
			Magnitude:    ptr(mag),
			Depth:        ptr(depth),
			PublishedAt:  occurred,
		})
	}
	if skipped > 0 {
		slog.Warn("skipped malformed rows", "source", c.Code(), "count", skipped)
	}
	if len(matches) == 0 {
		slog.Warn("no event rows matched, markup may have changed", "source", c.Code())
	}

	return obs, nil
}
