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

const nhcFixture = `{
  "activeStorms": [
    {
      "id": "al052026",
      "name": "Earl",
      "classification": "HU",
      "intensity": "100",
      "latitudeNumeric": 24.5,
      "longitudeNumeric": -70.2,
      "lastUpdate": "2026-08-29T15:00:00.000Z"
    },
    {
      "id": "ep082026",
      "name": "Gilma",
      "classification": "TS",
      "intensity": "45",
      "latitudeNumeric": 15.1,
      "longitudeNumeric": -120.4,
      "lastUpdate": "2026-08-29T15:00:00.000Z"
    }
  ]
}`

func TestNHC_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(nhcFixture))
	}))
	defer srv.Close()

	n := NewNHC(srv.URL, 5*time.Second)
	obs, err := n.Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, obs, 2)

	earl := obs[0]
	assert.Equal(t, "al052026", earl.ExternalID)
	assert.Equal(t, models.DisasterTypeStorm, earl.DisasterType)
	assert.Equal(t, "Category 3 Hurricane", earl.RawLevel)
	assert.Equal(t, "Category 3 Hurricane Earl", earl.Title)
	assert.Equal(t, 24.5, *earl.Lat)

	gilma := obs[1]
	assert.Equal(t, "Tropical Storm", gilma.RawLevel)
}

func TestClassificationText(t *testing.T) {
	assert.Equal(t, "Tropical Depression", classificationText("TD", "30"))
	assert.Equal(t, "Tropical Storm", classificationText("TS", "50"))
	assert.Equal(t, "Category 1 Hurricane", classificationText("HU", "70"))
	assert.Equal(t, "Category 2 Hurricane", classificationText("HU", "90"))
	assert.Equal(t, "Category 4 Hurricane", classificationText("MH", "120"))
	assert.Equal(t, "Category 5 Hurricane", classificationText("HU", "150"))
}
