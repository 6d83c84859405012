package models

import "time"

// UserZone is a user-owned circular region of interest. The fan-out
// engine reads zones; it never writes them.
type UserZone struct {
	ID       string  `json:"id"`
	UserID   string  `json:"userId"`
	Name     string  `json:"name"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	RadiusKm float64 `json:"radiusKm"`
	IsActive bool    `json:"isActive"`
}

// AlertPreference gates notifications per user and disaster type.
type AlertPreference struct {
	UserID       string       `json:"userId"`
	DisasterType DisasterType `json:"disasterType"`
	MinSeverity  int          `json:"minSeverity"`
	PushEnabled  bool         `json:"pushEnabled"`
}

// Device is a registered push delivery target.
type Device struct {
	UserID string `json:"userId"`
	Token  string `json:"token"`
}

// NotificationRecord is one row of the append-only delivery audit log.
type NotificationRecord struct {
	ID      string     `json:"id"`
	EventID string     `json:"eventId"`
	UserID  string     `json:"userId"`
	ZoneID  string     `json:"zoneId"`
	Channel string     `json:"channel"`
	SentAt  time.Time  `json:"sentAt"`
	ReadAt  *time.Time `json:"readAt,omitempty"`
}
