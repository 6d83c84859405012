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

// GVP reads the weekly volcanic activity report feed. The feed carries
// no native event GUID and buries the aviation color code inside HTML
// descriptions, so both are extracted heuristically.
type GVP struct {
	client
	url string
}

func NewGVP(url string, timeout time.Duration) *GVP {
	return &GVP{client: newClient(timeout), url: url}
}

func (g *GVP) Code() string { return "gvp" }

type gvpRSS struct {
	Channel gvpChannel `xml:"channel"`
}
type gvpChannel struct {
	Items []gvpItem `xml:"item"`
}
type gvpItem struct {
	Title       string `xml:"title"`
	Description string `xml:"description"`
	Link        string `xml:"link"`
	PubDate     string `xml:"pubDate"`
	Point       string `xml:"http://www.georss.org/georss point"` // "lat lng"
}

var (
	colorRe = regexp.MustCompile(`(?i)(?:aviation colou?r code|alert level)[^a-zA-Z]*(green|yellow|orange|red)`)
	slugRe  = regexp.MustCompile(`[^a-z0-9]+`)
)

func (g *GVP) Fetch(ctx context.Context) ([]models.RawObservation, error) {
	var data gvpRSS
	if err := g.getXML(ctx, g.url, &data); err != nil {
		return nil, err
	}

	obs := make([]models.RawObservation, 0, len(data.Channel.Items))
	skipped := 0
	for _, item := range data.Channel.Items {
		lat, lng, ok := parsePoint(item.Point)
		if !ok || item.Title == "" {
			skipped++
			continue
		}

		published, err := time.Parse(time.RFC1123Z, item.PubDate)
		if err != nil {
			if published, err = time.Parse(time.RFC1123, item.PubDate); err != nil {
				published = time.Now().UTC()
			}
		}

		// Volcano name is the title up to the first parenthesis:
		// "Fuego (Guatemala) ...".
		name := item.Title
		if i := strings.IndexByte(name, '('); i > 0 {
			name = strings.TrimSpace(name[:i])
		}

		color := ""
		if m := colorRe.FindStringSubmatch(item.Description); m != nil {
			color = m[1]
		}

		obs = append(obs, models.RawObservation{
			// No provider GUID; one report per volcano per weekly
			// report date is a stable identity.
			ExternalID:   slug(name) + "_" + published.Format("20060102"),
			DisasterType: models.DisasterTypeVolcano,
			Title:        item.Title,
			Description:  stripTags(item.Description),
			LocationName: name,
			Lat:          ptr(lat),
			Lng:          ptr(lng),
			RawLevel:     color,
			Link:         item.Link,
			PublishedAt:  published,
		})
	}
	if skipped > 0 {
		slog.Warn("skipped malformed items", "source", g.Code(), "count", skipped)
	}

	return obs, nil
}

func parsePoint(s string) (lat, lng float64, ok bool) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, 0, false
	}
	lat, err1 := strconv.ParseFloat(fields[0], 64)
	lng, err2 := strconv.ParseFloat(fields[1], 64)
	return lat, lng, err1 == nil && err2 == nil
}

func slug(s string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

func stripTags(s string) string {
	return strings.TrimSpace(tagRe.ReplaceAllString(s, " "))
}
