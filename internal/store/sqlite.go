package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/geowatch/disaster-watch/internal/models"
)

type SQLite struct {
	db    *sql.DB
	clock clockwork.Clock
}

func NewSQLite(path string, clock clockwork.Clock) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &SQLite{db: db, clock: clock}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating database: %w", err)
	}

	return s, nil
}

func (s *SQLite) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS events (
			id TEXT PRIMARY KEY,
			disaster_type TEXT NOT NULL,
			source TEXT NOT NULL,
			external_id TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			severity INTEGER NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			location_hash TEXT NOT NULL,
			location_name TEXT,
			radius_km REAL NOT NULL,
			magnitude REAL,
			depth REAL,
			metadata TEXT,
			event_time DATETIME NOT NULL,
			expires_at DATETIME NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			UNIQUE(source, external_id)
		);

		CREATE TABLE IF NOT EXISTS user_zones (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			name TEXT NOT NULL,
			latitude REAL NOT NULL,
			longitude REAL NOT NULL,
			radius_km REAL NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1
		);

		CREATE TABLE IF NOT EXISTS alert_preferences (
			user_id TEXT NOT NULL,
			disaster_type TEXT NOT NULL,
			min_severity INTEGER NOT NULL DEFAULT 1,
			push_enabled INTEGER NOT NULL DEFAULT 1,
			PRIMARY KEY (user_id, disaster_type)
		);

		CREATE TABLE IF NOT EXISTS devices (
			user_id TEXT NOT NULL,
			token TEXT NOT NULL,
			PRIMARY KEY (user_id, token)
		);

		CREATE TABLE IF NOT EXISTS notification_records (
			id TEXT PRIMARY KEY,
			event_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			zone_id TEXT NOT NULL,
			channel TEXT NOT NULL,
			sent_at DATETIME NOT NULL,
			read_at DATETIME
		);

		CREATE INDEX IF NOT EXISTS idx_events_event_time ON events(event_time);
		CREATE INDEX IF NOT EXISTS idx_events_expires_at ON events(expires_at);
		CREATE INDEX IF NOT EXISTS idx_events_location_hash ON events(location_hash);
		CREATE INDEX IF NOT EXISTS idx_events_type ON events(disaster_type);
		CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at);
		CREATE INDEX IF NOT EXISTS idx_zones_user_id ON user_zones(user_id);
		CREATE INDEX IF NOT EXISTS idx_records_event_id ON notification_records(event_id);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

const eventColumns = `id, disaster_type, source, external_id, title, description, severity,
	latitude, longitude, location_hash, location_name, radius_km, magnitude, depth,
	metadata, event_time, expires_at, created_at, updated_at`

func (s *SQLite) AddBatch(ctx context.Context, events []*models.DisasterEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("error preparing insert: %w", err)
	}
	defer stmt.Close()

	now := s.clock.Now().UTC()
	for _, e := range events {
		if e.ID == "" {
			e.ID = ulid.Make().String()
		}
		e.CreatedAt = now
		e.UpdatedAt = now

		meta, err := json.Marshal(e.Metadata)
		if err != nil {
			return fmt.Errorf("error marshaling metadata for %s: %w", e.ID, err)
		}

		if _, err := stmt.ExecContext(ctx,
			e.ID, string(e.DisasterType), e.Source, e.ExternalID, e.Title, e.Description,
			e.Severity, e.Location.Lat, e.Location.Lng, e.LocationHash, e.LocationName,
			e.RadiusKm, nullable(e.Magnitude), nullable(e.Depth), string(meta),
			e.EventTime, e.ExpiresAt, e.CreatedAt, e.UpdatedAt,
		); err != nil {
			return fmt.Errorf("error inserting event %s/%s: %w", e.Source, e.ExternalID, err)
		}
	}

	return tx.Commit()
}

func (s *SQLite) GetByID(ctx context.Context, id string) (*models.DisasterEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+eventColumns+` FROM events WHERE id = ?`, id)
	e, err := scanEvent(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying event: %w", err)
	}
	return e, nil
}

// keyChunkSize bounds bind variables per existence query (two per key)
// so large feeds stay under SQLite's per-statement variable limit.
const keyChunkSize = 400

func (s *SQLite) FilterExistingKeys(ctx context.Context, keys []models.EventKey) (map[models.EventKey]bool, error) {
	existing := make(map[models.EventKey]bool, len(keys))

	for start := 0; start < len(keys); start += keyChunkSize {
		chunk := keys[start:min(start+keyChunkSize, len(keys))]

		clauses := make([]string, 0, len(chunk))
		args := make([]any, 0, len(chunk)*2)
		for _, k := range chunk {
			clauses = append(clauses, "(source = ? AND external_id = ?)")
			args = append(args, k.Source, k.ExternalID)
		}

		rows, err := s.db.QueryContext(ctx,
			`SELECT source, external_id FROM events WHERE `+strings.Join(clauses, " OR "), args...)
		if err != nil {
			return nil, fmt.Errorf("error querying existing keys: %w", err)
		}

		for rows.Next() {
			var k models.EventKey
			if err := rows.Scan(&k.Source, &k.ExternalID); err != nil {
				rows.Close()
				return nil, err
			}
			existing[k] = true
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
	}

	return existing, nil
}

func (s *SQLite) RecentKeys(ctx context.Context, since time.Time) (map[models.EventKey]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source, external_id FROM events WHERE created_at >= ?`, since)
	if err != nil {
		return nil, fmt.Errorf("error querying recent keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[models.EventKey]bool)
	for rows.Next() {
		var k models.EventKey
		if err := rows.Scan(&k.Source, &k.ExternalID); err != nil {
			return nil, err
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

func (s *SQLite) ListEvents(ctx context.Context, f Filter) ([]models.DisasterEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE 1=1`
	var args []any

	if f.Type != nil {
		query += " AND disaster_type = ?"
		args = append(args, string(*f.Type))
	}
	if f.MinSeverity != nil {
		query += " AND severity >= ?"
		args = append(args, *f.MinSeverity)
	}
	if f.Since != nil {
		query += " AND event_time >= ?"
		args = append(args, *f.Since)
	}
	if f.Source != "" {
		query += " AND source = ?"
		args = append(args, f.Source)
	}

	query += " ORDER BY event_time DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing events: %w", err)
	}
	defer rows.Close()

	var events []models.DisasterEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (s *SQLite) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE expires_at < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("error deleting expired events: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLite) CountBySource(ctx context.Context) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM events GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("error counting events: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var source string
		var n int64
		if err := rows.Scan(&source, &n); err != nil {
			return nil, err
		}
		counts[source] = n
	}
	return counts, rows.Err()
}

func (s *SQLite) CountByType(ctx context.Context) (map[models.DisasterType]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT disaster_type, COUNT(*) FROM events GROUP BY disaster_type`)
	if err != nil {
		return nil, fmt.Errorf("error counting events: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.DisasterType]int64)
	for rows.Next() {
		var t string
		var n int64
		if err := rows.Scan(&t, &n); err != nil {
			return nil, err
		}
		counts[models.DisasterType(t)] = n
	}
	return counts, rows.Err()
}

func (s *SQLite) UsersWithDevices(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM devices`)
	if err != nil {
		return nil, fmt.Errorf("error listing users: %w", err)
	}
	defer rows.Close()

	var users []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func (s *SQLite) DevicesByUser(ctx context.Context, userID string) ([]models.Device, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, token FROM devices WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing devices: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var d models.Device
		if err := rows.Scan(&d.UserID, &d.Token); err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func (s *SQLite) ActiveZones(ctx context.Context, userID string) ([]models.UserZone, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, latitude, longitude, radius_km, is_active
		 FROM user_zones WHERE user_id = ? AND is_active = 1`, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing zones: %w", err)
	}
	defer rows.Close()

	var zones []models.UserZone
	for rows.Next() {
		var z models.UserZone
		if err := rows.Scan(&z.ID, &z.UserID, &z.Name, &z.Lat, &z.Lng, &z.RadiusKm, &z.IsActive); err != nil {
			return nil, err
		}
		zones = append(zones, z)
	}
	return zones, rows.Err()
}

func (s *SQLite) Preference(ctx context.Context, userID string, t models.DisasterType) (*models.AlertPreference, error) {
	var p models.AlertPreference
	err := s.db.QueryRowContext(ctx,
		`SELECT user_id, disaster_type, min_severity, push_enabled
		 FROM alert_preferences WHERE user_id = ? AND disaster_type = ?`,
		userID, string(t)).Scan(&p.UserID, &p.DisasterType, &p.MinSeverity, &p.PushEnabled)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying preference: %w", err)
	}
	return &p, nil
}

func (s *SQLite) AddNotification(ctx context.Context, rec *models.NotificationRecord) error {
	if rec.ID == "" {
		rec.ID = ulid.Make().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO notification_records (id, event_id, user_id, zone_id, channel, sent_at, read_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.EventID, rec.UserID, rec.ZoneID, rec.Channel, rec.SentAt, rec.ReadAt)
	if err != nil {
		return fmt.Errorf("error inserting notification record: %w", err)
	}
	return nil
}

// Provisioning writes. Zone, preference and device management is owned
// by the front end; these exist for that surface and for tests.

func (s *SQLite) AddZone(ctx context.Context, z *models.UserZone) error {
	if z.ID == "" {
		z.ID = ulid.Make().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO user_zones (id, user_id, name, latitude, longitude, radius_km, is_active)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		z.ID, z.UserID, z.Name, z.Lat, z.Lng, z.RadiusKm, z.IsActive)
	return err
}

func (s *SQLite) AddDevice(ctx context.Context, d *models.Device) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO devices (user_id, token) VALUES (?, ?)`, d.UserID, d.Token)
	return err
}

func (s *SQLite) SetPreference(ctx context.Context, p *models.AlertPreference) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO alert_preferences (user_id, disaster_type, min_severity, push_enabled)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id, disaster_type)
		 DO UPDATE SET min_severity = excluded.min_severity, push_enabled = excluded.push_enabled`,
		p.UserID, string(p.DisasterType), p.MinSeverity, p.PushEnabled)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (*models.DisasterEvent, error) {
	var e models.DisasterEvent
	var disasterType, meta string
	var description, locationName sql.NullString
	var magnitude, depth sql.NullFloat64

	err := row.Scan(&e.ID, &disasterType, &e.Source, &e.ExternalID, &e.Title, &description,
		&e.Severity, &e.Location.Lat, &e.Location.Lng, &e.LocationHash, &locationName,
		&e.RadiusKm, &magnitude, &depth, &meta, &e.EventTime, &e.ExpiresAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.DisasterType = models.DisasterType(disasterType)
	e.Description = description.String
	e.LocationName = locationName.String
	if magnitude.Valid {
		e.Magnitude = &magnitude.Float64
	}
	if depth.Valid {
		e.Depth = &depth.Float64
	}
	if meta != "" && meta != "null" {
		if err := json.Unmarshal([]byte(meta), &e.Metadata); err != nil {
			return nil, fmt.Errorf("error unmarshaling metadata for %s: %w", e.ID, err)
		}
	}
	return &e, nil
}

func nullable(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
