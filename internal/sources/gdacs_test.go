package sources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowatch/disaster-watch/internal/models"
)

const gdacsFixture = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:georss="http://www.georss.org/georss" xmlns:gdacs="http://www.gdacs.org">
  <channel>
    <item>
      <title>Red alert Cyclone FREDDY-23</title>
      <description>Tropical Cyclone FREDDY-23 affects Madagascar</description>
      <link>https://example.org/tc123</link>
      <pubDate>Mon, 24 Aug 2026 10:00:00 GMT</pubDate>
      <georss:point><georss:lat>-20.1</georss:lat><georss:lon>45.3</georss:lon></georss:point>
      <gdacs:eventtype>TC</gdacs:eventtype>
      <gdacs:alertlevel>Red</gdacs:alertlevel>
      <gdacs:eventid>1000123</gdacs:eventid>
      <gdacs:country>Madagascar</gdacs:country>
      <gdacs:severity>120.5</gdacs:severity>
    </item>
    <item>
      <title>Unknown event type</title>
      <gdacs:eventtype>XX</gdacs:eventtype>
      <gdacs:eventid>1000124</gdacs:eventid>
    </item>
    <item>
      <title>Missing event id</title>
      <gdacs:eventtype>FL</gdacs:eventtype>
      <gdacs:eventid></gdacs:eventid>
    </item>
  </channel>
</rss>`

func TestGDACS_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(gdacsFixture))
	}))
	defer srv.Close()

	g := NewGDACS(srv.URL, 5*time.Second)
	obs, err := g.Fetch(context.Background())
	require.NoError(t, err)

	// unknown types and missing ids are skipped
	require.Len(t, obs, 1)

	o := obs[0]
	assert.Equal(t, "1000123", o.ExternalID)
	assert.Equal(t, models.DisasterTypeStorm, o.DisasterType)
	assert.Equal(t, "Red", o.RawLevel)
	assert.Equal(t, -20.1, *o.Lat)
	assert.Equal(t, 45.3, *o.Lng)
	assert.Equal(t, "Madagascar", o.LocationName)
	assert.Equal(t, "120.5", o.Metadata["gdacs_score"])

	want := time.Date(2026, 8, 24, 10, 0, 0, 0, time.UTC)
	assert.True(t, o.PublishedAt.Equal(want))
}

func TestMapGDACSEventType(t *testing.T) {
	assert.Equal(t, models.DisasterTypeEarthquake, mapGDACSEventType("EQ"))
	assert.Equal(t, models.DisasterTypeTsunami, mapGDACSEventType("ts"))
	assert.Equal(t, models.DisasterTypeVolcano, mapGDACSEventType("VO"))
	assert.Equal(t, models.DisasterTypeUnknown, mapGDACSEventType("DR"))
}
