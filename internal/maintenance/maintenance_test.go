package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/models"
	"github.com/geowatch/disaster-watch/internal/observability"
	"github.com/geowatch/disaster-watch/internal/store"
)

func TestSweep_RemovesExpired(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s, err := store.NewSQLite(":memory:", clock)
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer s.Close()

	now := clock.Now().UTC()
	events := []*models.DisasterEvent{
		{
			DisasterType: models.DisasterTypeTsunami,
			Source:       "gdacs",
			ExternalID:   "short-lived",
			Title:        "Tsunami Advisory",
			Severity:     3,
			Location:     models.Location{Lat: 38.3, Lng: 142.4},
			EventTime:    now,
			ExpiresAt:    now.Add(72 * time.Hour),
		},
		{
			DisasterType: models.DisasterTypeVolcano,
			Source:       "gvp",
			ExternalID:   "long-lived",
			Title:        "Ongoing Eruption",
			Severity:     3,
			Location:     models.Location{Lat: 19.4, Lng: -155.3},
			EventTime:    now,
			ExpiresAt:    now.Add(30 * 24 * time.Hour),
		},
	}
	if err := s.AddBatch(context.Background(), events); err != nil {
		t.Fatalf("seeding events: %v", err)
	}

	janitor := NewJanitor(s, observability.NewMetricsForTesting(), clock)

	// Nothing expired yet
	removed, err := janitor.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected 0 removed, got %d", removed)
	}

	// Past the tsunami's retention but not the volcano's
	clock.Advance(4 * 24 * time.Hour)
	removed, err = janitor.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if removed != 1 {
		t.Errorf("expected 1 removed, got %d", removed)
	}

	remaining, err := s.ListEvents(context.Background(), store.Filter{Limit: 10})
	if err != nil {
		t.Fatalf("listing events: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ExternalID != "long-lived" {
		t.Errorf("expected only long-lived event to remain, got %+v", remaining)
	}
}
