package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/geowatch/disaster-watch/internal/fanout"
	"github.com/geowatch/disaster-watch/internal/models"
	"github.com/geowatch/disaster-watch/internal/store"
)

type Handler struct {
	events      store.EventStore
	broadcaster *fanout.Broadcaster
}

func NewHandler(events store.EventStore, broadcaster *fanout.Broadcaster) *Handler {
	return &Handler{
		events:      events,
		broadcaster: broadcaster,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.GET("/api/events", h.getEvents)
	r.GET("/api/events/:id", h.getEvent)
	r.GET("/health", h.health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.POST("/api/debug/test-event", h.createTestEvent)
}

func (h *Handler) getEvents(c *gin.Context) {
	filter := store.Filter{
		Limit: 20, // Default to 20 events if limit param not supplied
	}

	if t := c.Query("type"); t != "" {
		dt := parseDisasterType(t)
		if dt != models.DisasterTypeUnknown {
			filter.Type = &dt
		}
	}
	if m := c.Query("min_severity"); m != "" {
		if sev, err := strconv.Atoi(m); err == nil && sev >= 1 && sev <= 5 {
			filter.MinSeverity = &sev
		}
	}
	if s := c.Query("since"); s != "" {
		if t, err := time.Parse("2006-01-02", s); err == nil {
			filter.Since = &t
		}
	}
	if l := c.Query("limit"); l != "" {
		if lim, err := strconv.Atoi(l); err == nil && lim > 0 && lim <= 500 {
			filter.Limit = lim
		}
	}
	if src := c.Query("source"); src != "" {
		filter.Source = strings.ToLower(src)
	}

	events, err := h.events.ListEvents(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to fetch events",
		})
		return
	}

	fc := toGeoJSON(events)
	c.Header("Content-Type", "application/geo+json")
	c.JSON(http.StatusOK, fc)
}

func (h *Handler) getEvent(c *gin.Context) {
	event, err := h.events.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "event not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch event"})
		return
	}

	c.JSON(http.StatusOK, event)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) createTestEvent(c *gin.Context) {
	mag := 7.5
	event := &models.DisasterEvent{
		ID:           fmt.Sprintf("test_%d", time.Now().UnixNano()),
		DisasterType: models.DisasterTypeEarthquake,
		Source:       "test",
		ExternalID:   "debug",
		Title:        "Test Earthquake - M7.5",
		Description:  "This is a test event for debugging",
		Severity:     5,
		Magnitude:    &mag,
		Location:     models.Location{Lat: 35.6762, Lng: 139.6503},
		LocationName: "Tokyo, Japan",
		RadiusKm:     150,
		EventTime:    time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	}

	// Broadcast only - don't persist test data to DB
	if h.broadcaster != nil {
		h.broadcaster.Broadcast(event)
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "test event broadcast (not persisted)",
		"id":      event.ID,
	})
}

func parseDisasterType(s string) models.DisasterType {
	switch strings.ToLower(s) {
	case "earthquake":
		return models.DisasterTypeEarthquake
	case "tsunami":
		return models.DisasterTypeTsunami
	case "volcano":
		return models.DisasterTypeVolcano
	case "wildfire":
		return models.DisasterTypeWildfire
	case "flood":
		return models.DisasterTypeFlood
	case "storm", "cyclone", "hurricane":
		return models.DisasterTypeStorm
	case "landslide":
		return models.DisasterTypeLandslide
	case "heatwave":
		return models.DisasterTypeHeatwave
	default:
		return models.DisasterTypeUnknown
	}
}
