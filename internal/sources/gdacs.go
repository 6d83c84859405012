package sources

import (
	"context"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

// GDACS reads the global disaster aggregator's RSS feed. Alert levels
// come on the aggregator's own three-step green/orange/red scale.
type GDACS struct {
	client
	url string
}

func NewGDACS(url string, timeout time.Duration) *GDACS {
	return &GDACS{client: newClient(timeout), url: url}
}

func (g *GDACS) Code() string { return "gdacs" }

type gdacsRSS struct {
	Channel gdacsChannel `xml:"channel"`
}
type gdacsChannel struct {
	Items []gdacsItem `xml:"item"`
}
type gdacsItem struct {
	Title       string  `xml:"title"`
	Description string  `xml:"description"`
	Link        string  `xml:"link"`
	PubDate     string  `xml:"pubDate"`
	Lat         float64 `xml:"http://www.georss.org/georss point>lat"`
	Lon         float64 `xml:"http://www.georss.org/georss point>lon"`
	EventType   string  `xml:"http://www.gdacs.org gdacs>eventtype"`
	AlertLevel  string  `xml:"http://www.gdacs.org gdacs>alertlevel"`
	EventID     string  `xml:"http://www.gdacs.org gdacs>eventid"`
	Country     string  `xml:"http://www.gdacs.org gdacs>country"`
	Severity    float64 `xml:"http://www.gdacs.org gdacs>severity"`
}

func (g *GDACS) Fetch(ctx context.Context) ([]models.RawObservation, error) {
	var data gdacsRSS
	if err := g.getXML(ctx, g.url, &data); err != nil {
		return nil, err
	}

	obs := make([]models.RawObservation, 0, len(data.Channel.Items))
	skipped := 0
	for _, item := range data.Channel.Items {
		if item.EventID == "" {
			skipped++
			continue
		}

		disasterType := mapGDACSEventType(item.EventType)
		if disasterType == models.DisasterTypeUnknown {
			skipped++
			continue
		}

		published, err := time.Parse(time.RFC1123, item.PubDate)
		if err != nil {
			slog.Warn("gdacs timestamp parsing failed", "id", item.EventID, "error", err)
			published = time.Now().UTC()
		}

		obs = append(obs, models.RawObservation{
			ExternalID:   item.EventID,
			DisasterType: disasterType,
			Title:        item.Title,
			Description:  item.Description,
			LocationName: item.Country,
			Lat:          ptr(item.Lat),
			Lng:          ptr(item.Lon),
			RawLevel:     item.AlertLevel,
			Link:         item.Link,
			PublishedAt:  published,
			Metadata:     map[string]string{"gdacs_score": strconv.FormatFloat(item.Severity, 'f', -1, 64)},
		})
	}
	if skipped > 0 {
		slog.Warn("skipped malformed items", "source", g.Code(), "count", skipped)
	}

	return obs, nil
}

func mapGDACSEventType(eventType string) models.DisasterType {
	switch strings.ToUpper(eventType) {
	case "EQ":
		return models.DisasterTypeEarthquake
	case "TC":
		return models.DisasterTypeStorm
	case "FL":
		return models.DisasterTypeFlood
	case "VO":
		return models.DisasterTypeVolcano
	case "TS":
		return models.DisasterTypeTsunami
	case "WF":
		return models.DisasterTypeWildfire
	case "LS":
		return models.DisasterTypeLandslide
	default:
		return models.DisasterTypeUnknown
	}
}
