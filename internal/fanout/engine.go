// Package fanout matches newly persisted events against user zones and
// alert preferences and dispatches push notifications.
package fanout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jonboulle/clockwork"

	"github.com/geowatch/disaster-watch/internal/geo"
	"github.com/geowatch/disaster-watch/internal/models"
	"github.com/geowatch/disaster-watch/internal/observability"
	"github.com/geowatch/disaster-watch/internal/push"
	"github.com/geowatch/disaster-watch/internal/store"
	"github.com/geowatch/disaster-watch/internal/worker"
)

// fallbackRadiusKm stands in when an event arrives with no affected
// radius, so the match test never fails on a zero.
const fallbackRadiusKm = 100

type typeDisplay struct {
	Icon  string
	Label string
}

// displayByType is the per-type notification presentation. Events of a
// type missing here are never fanned out.
var displayByType = map[models.DisasterType]typeDisplay{
	models.DisasterTypeEarthquake: {Icon: "🌐", Label: "Earthquake"},
	models.DisasterTypeTsunami:    {Icon: "🌊", Label: "Tsunami"},
	models.DisasterTypeVolcano:    {Icon: "🌋", Label: "Volcanic Activity"},
	models.DisasterTypeWildfire:   {Icon: "🔥", Label: "Wildfire"},
	models.DisasterTypeFlood:      {Icon: "💧", Label: "Flood"},
	models.DisasterTypeStorm:      {Icon: "🌀", Label: "Severe Storm"},
	models.DisasterTypeLandslide:  {Icon: "⛰️", Label: "Landslide"},
	models.DisasterTypeHeatwave:   {Icon: "🌡️", Label: "Heat Wave"},
}

var severityLabels = map[int]string{1: "LOW", 2: "MODERATE", 3: "HIGH", 4: "CRITICAL", 5: "CRITICAL"}

// Summary reports one fan-out invocation.
type Summary struct {
	UsersScanned int
	Sent         int
	Failed       int
}

type Engine struct {
	users       store.UserStore
	sender      push.Sender
	metrics     *observability.Metrics
	clock       clockwork.Clock
	minSeverity int
	concurrency int
}

func NewEngine(users store.UserStore, sender push.Sender, metrics *observability.Metrics,
	clock clockwork.Clock, minSeverity, concurrency int) *Engine {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if minSeverity < 1 {
		minSeverity = 1
	}
	if concurrency < 1 {
		concurrency = 4
	}
	return &Engine{
		users:       users,
		sender:      sender,
		metrics:     metrics,
		clock:       clock,
		minSeverity: minSeverity,
		concurrency: concurrency,
	}
}

// Run consumes the broadcaster channel until it closes or the context
// is cancelled.
func (e *Engine) Run(ctx context.Context, events <-chan *models.DisasterEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			summary := e.NotifyEvent(ctx, ev)
			if summary.Sent > 0 || summary.Failed > 0 {
				slog.Info("fan-out complete", "event_id", ev.ID,
					"users", summary.UsersScanned, "sent", summary.Sent, "failed", summary.Failed)
			}
		}
	}
}

// NotifyEvent fans one event out to every matching user. Per-user
// dispatch failures are counted, never escalated: the call always
// completes and reports a best-effort sent count.
func (e *Engine) NotifyEvent(ctx context.Context, ev *models.DisasterEvent) Summary {
	var summary Summary

	if ev.Severity < e.minSeverity {
		return summary
	}
	if !ev.Location.Valid() {
		slog.Warn("event with invalid location reached fan-out, rejecting", "event_id", ev.ID)
		return summary
	}
	if _, ok := displayByType[ev.DisasterType]; !ok {
		slog.Warn("no display metadata for type, rejecting", "event_id", ev.ID, "type", ev.DisasterType)
		return summary
	}

	userIDs, err := e.users.UsersWithDevices(ctx)
	if err != nil {
		slog.Error("listing users failed", "event_id", ev.ID, "error", err)
		return summary
	}
	summary.UsersScanned = len(userIDs)
	if len(userIDs) == 0 {
		return summary
	}

	var sent, failed atomic.Int64
	var wg sync.WaitGroup

	pool := worker.NewPool(e.concurrency, len(userIDs), func(ctx context.Context, userID string) error {
		defer wg.Done()
		if err := ctx.Err(); err != nil {
			// cancelled mid-invocation: the remaining users are counted
			// as failed so the summary stays honest
			failed.Add(1)
			return err
		}
		n, err := e.notifyUser(ctx, ev, userID)
		sent.Add(int64(n))
		if err != nil {
			failed.Add(1)
			slog.Warn("user dispatch failed", "event_id", ev.ID, "user_id", userID, "error", err)
		}
		return err
	})
	pool.Start(ctx)
	for _, id := range userIDs {
		wg.Add(1)
		pool.Submit(id)
	}
	wg.Wait()
	pool.Stop()

	summary.Sent = int(sent.Load())
	summary.Failed = int(failed.Load())
	if e.metrics != nil {
		e.metrics.NotificationsSent.Add(float64(summary.Sent))
		e.metrics.NotificationsFailed.Add(float64(summary.Failed))
	}
	return summary
}

// notifyUser evaluates one user's zones and preferences and dispatches
// at most one notification per device. Returns the number sent.
func (e *Engine) notifyUser(ctx context.Context, ev *models.DisasterEvent, userID string) (int, error) {
	zones, err := e.users.ActiveZones(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("loading zones: %w", err)
	}
	if len(zones) == 0 {
		// no active zones: skip before any distance math
		return 0, nil
	}

	pref, err := e.users.Preference(ctx, userID, ev.DisasterType)
	if err != nil {
		return 0, fmt.Errorf("loading preference: %w", err)
	}
	if pref != nil {
		if !pref.PushEnabled {
			return 0, nil
		}
		if ev.Severity < pref.MinSeverity {
			return 0, nil
		}
	}

	zone, distance, ok := closestMatch(ev, zones)
	if !ok {
		return 0, nil
	}

	devices, err := e.users.DevicesByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("loading devices: %w", err)
	}

	title, body := composeMessage(ev, zone, distance)
	data := map[string]string{
		"eventId":      ev.ID,
		"disasterType": string(ev.DisasterType),
		"severity":     fmt.Sprintf("%d", ev.Severity),
	}

	sent := 0
	var lastErr error
	for _, d := range devices {
		if err := e.sender.Send(ctx, d.Token, title, body, data); err != nil {
			lastErr = err
			continue
		}
		sent++
		rec := &models.NotificationRecord{
			EventID: ev.ID,
			UserID:  userID,
			ZoneID:  zone.ID,
			Channel: "push",
			SentAt:  e.clock.Now().UTC(),
		}
		if err := e.users.AddNotification(ctx, rec); err != nil {
			slog.Warn("recording notification failed", "event_id", ev.ID, "user_id", userID, "error", err)
		}
	}
	return sent, lastErr
}

// closestMatch returns the nearest zone matching the union-radius rule:
// a zone matches when the distance is within the zone's own radius OR
// within the event's affected radius, whichever is more permissive.
func closestMatch(ev *models.DisasterEvent, zones []models.UserZone) (models.UserZone, float64, bool) {
	eventRadius := ev.RadiusKm
	if eventRadius <= 0 {
		eventRadius = fallbackRadiusKm
	}

	var best models.UserZone
	bestDist := -1.0
	for _, z := range zones {
		d := geo.DistanceKm(z.Lat, z.Lng, ev.Location.Lat, ev.Location.Lng)
		if d > z.RadiusKm && d > eventRadius {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best = z
			bestDist = d
		}
	}
	return best, bestDist, bestDist >= 0
}

func composeMessage(ev *models.DisasterEvent, zone models.UserZone, distance float64) (title, body string) {
	display := displayByType[ev.DisasterType]
	label := severityLabels[ev.Severity]
	if label == "" {
		label = "CRITICAL"
	}

	if ev.DisasterType == models.DisasterTypeEarthquake && ev.Magnitude != nil {
		title = fmt.Sprintf("M%.1f %s [%s]", *ev.Magnitude, display.Label, label)
	} else {
		title = fmt.Sprintf("%s %s [%s]", display.Icon, display.Label, label)
	}

	body = fmt.Sprintf("%s (%.0fkm from %s)", ev.Title, distance, zone.Name)
	return title, body
}
