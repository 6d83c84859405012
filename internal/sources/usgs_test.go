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

const usgsFixture = `{
  "features": [
    {
      "id": "us1234",
      "properties": {
        "mag": 6.2,
        "place": "30km SW of Santiago, Chile",
        "time": 1756500000000,
        "title": "M 6.2 - 30km SW of Santiago, Chile",
        "url": "https://example.org/us1234",
        "tsunami": 0
      },
      "geometry": {"coordinates": [-70.65, -33.45, 104.2]}
    },
    {
      "id": "",
      "properties": {"mag": 2.0, "title": "no id"},
      "geometry": {"coordinates": [1.0, 2.0]}
    },
    {
      "id": "us9999",
      "properties": {"mag": 3.1, "title": "no geometry"},
      "geometry": {"coordinates": []}
    }
  ]
}`

func TestUSGS_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte(usgsFixture))
	}))
	defer srv.Close()

	u := NewUSGS(srv.URL, 5*time.Second)
	obs, err := u.Fetch(context.Background())
	require.NoError(t, err)

	// malformed features are skipped, not fatal
	require.Len(t, obs, 1)

	o := obs[0]
	assert.Equal(t, "us1234", o.ExternalID)
	assert.Equal(t, models.DisasterTypeEarthquake, o.DisasterType)
	assert.Equal(t, -33.45, *o.Lat)
	assert.Equal(t, -70.65, *o.Lng)
	assert.Equal(t, 6.2, *o.Magnitude)
	assert.Equal(t, 104.2, *o.Depth)
	assert.Equal(t, time.UnixMilli(1756500000000), o.PublishedAt)
}

func TestUSGS_FetchNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	u := NewUSGS(srv.URL, 5*time.Second)
	_, err := u.Fetch(context.Background())
	assert.Error(t, err)
}

func TestUSGS_FetchBadPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	u := NewUSGS(srv.URL, 5*time.Second)
	_, err := u.Fetch(context.Background())
	assert.Error(t, err)
}
