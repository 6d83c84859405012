package store

import (
	"context"
	"errors"
	"time"

	"github.com/geowatch/disaster-watch/internal/models"
)

var ErrNotFound = errors.New("not found")

type Filter struct {
	Limit       int
	Type        *models.DisasterType
	MinSeverity *int
	Since       *time.Time
	Source      string
}

// EventStore is the persistence surface the ingestion pipeline writes
// to and the read API serves from.
type EventStore interface {
	// AddBatch commits events in one transaction: all-or-nothing per
	// adapter batch. IDs and bookkeeping timestamps are assigned here.
	AddBatch(ctx context.Context, events []*models.DisasterEvent) error
	GetByID(ctx context.Context, id string) (*models.DisasterEvent, error)
	// FilterExistingKeys returns which of the candidate dedup keys are
	// already stored, in one query.
	FilterExistingKeys(ctx context.Context, keys []models.EventKey) (map[models.EventKey]bool, error)
	// RecentKeys returns every stored dedup key created since the given
	// time, for the window-prefetch dedup strategy.
	RecentKeys(ctx context.Context, since time.Time) (map[models.EventKey]bool, error)
	ListEvents(ctx context.Context, f Filter) ([]models.DisasterEvent, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
	CountBySource(ctx context.Context) (map[string]int64, error)
	CountByType(ctx context.Context) (map[models.DisasterType]int64, error)
}

// UserStore is the read-only surface the fan-out engine consumes, plus
// the append-only notification log.
type UserStore interface {
	// UsersWithDevices lists user IDs holding at least one registered
	// delivery token.
	UsersWithDevices(ctx context.Context) ([]string, error)
	DevicesByUser(ctx context.Context, userID string) ([]models.Device, error)
	ActiveZones(ctx context.Context, userID string) ([]models.UserZone, error)
	// Preference returns nil when the user has none stored for the type.
	Preference(ctx context.Context, userID string, t models.DisasterType) (*models.AlertPreference, error)
	AddNotification(ctx context.Context, rec *models.NotificationRecord) error
}
