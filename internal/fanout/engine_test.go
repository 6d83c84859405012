package fanout

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geowatch/disaster-watch/internal/models"
	"github.com/geowatch/disaster-watch/internal/observability"
	"github.com/geowatch/disaster-watch/internal/store"
)

type fakeUserStore struct {
	mu      sync.Mutex
	devices map[string][]models.Device
	zones   map[string][]models.UserZone
	prefs   map[string]*models.AlertPreference
	records []*models.NotificationRecord
}

var _ store.UserStore = (*fakeUserStore)(nil)

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		devices: make(map[string][]models.Device),
		zones:   make(map[string][]models.UserZone),
		prefs:   make(map[string]*models.AlertPreference),
	}
}

func (f *fakeUserStore) UsersWithDevices(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.devices))
	for id := range f.devices {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeUserStore) DevicesByUser(ctx context.Context, userID string) ([]models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.devices[userID], nil
}

func (f *fakeUserStore) ActiveZones(ctx context.Context, userID string) ([]models.UserZone, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.zones[userID], nil
}

func (f *fakeUserStore) Preference(ctx context.Context, userID string, t models.DisasterType) (*models.AlertPreference, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prefs[userID+"/"+string(t)], nil
}

func (f *fakeUserStore) AddNotification(ctx context.Context, rec *models.NotificationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, rec)
	return nil
}

type sentMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type fakeSender struct {
	mu      sync.Mutex
	sent    []sentMessage
	failFor map[string]error
}

func newFakeSender() *fakeSender {
	return &fakeSender{failFor: make(map[string]error)}
}

func (f *fakeSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failFor[token]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{Token: token, Title: title, Body: body, Data: data})
	return nil
}

func (f *fakeSender) messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]sentMessage, len(f.sent))
	copy(out, f.sent)
	return out
}

func testEvent(t models.DisasterType, severity int, lat, lng, radiusKm float64) *models.DisasterEvent {
	return &models.DisasterEvent{
		ID:           "01TESTEVENT00000000000000",
		DisasterType: t,
		Source:       "usgs",
		ExternalID:   "ev-1",
		Title:        "M6.2 - 10km SSW of Somewhere",
		Severity:     severity,
		Location:     models.Location{Lat: lat, Lng: lng},
		RadiusKm:     radiusKm,
		EventTime:    time.Now().UTC(),
	}
}

func newTestEngine(users store.UserStore, sender *fakeSender) *Engine {
	metrics := observability.NewMetricsForTesting()
	return NewEngine(users, sender, metrics, clockwork.NewFakeClock(), 2, 2)
}

// One degree of longitude at the equator is about 111km. The zone's own
// radius covers that distance even though the event radius does not.
func TestNotifyEvent_MatchByZoneRadius(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Home", Lat: 0, Lng: 1, RadiusKm: 120, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	ev := testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50)
	summary := engine.NotifyEvent(context.Background(), ev)

	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 0, summary.Failed)
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "tok-1", msgs[0].Token)
	assert.Contains(t, msgs[0].Body, "Home")
}

// The zone radius is too small, but the event's affected radius reaches
// the zone center. Either radius alone is enough.
func TestNotifyEvent_MatchByEventRadius(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Office", Lat: 0, Lng: 1, RadiusKm: 10, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	ev := testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 150)
	summary := engine.NotifyEvent(context.Background(), ev)

	assert.Equal(t, 1, summary.Sent)
}

func TestNotifyEvent_NoMatchOutsideBothRadii(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Far", Lat: 0, Lng: 5, RadiusKm: 10, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	ev := testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50)
	summary := engine.NotifyEvent(context.Background(), ev)

	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, sender.messages())
}

// An event with no radius is treated as reaching 100km.
func TestNotifyEvent_FallbackEventRadius(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		// ~89km away, zone radius far too small on its own
		{ID: "z1", UserID: "u1", Name: "Home", Lat: 0, Lng: 0.8, RadiusKm: 5, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	ev := testEvent(models.DisasterTypeFlood, 3, 0, 0, 0)
	summary := engine.NotifyEvent(context.Background(), ev)

	assert.Equal(t, 1, summary.Sent)
}

func TestNotifyEvent_BelowEngineFloor(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Home", Lat: 0, Lng: 0, RadiusKm: 50, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	ev := testEvent(models.DisasterTypeEarthquake, 1, 0, 0, 50)
	summary := engine.NotifyEvent(context.Background(), ev)

	assert.Equal(t, 0, summary.UsersScanned)
	assert.Equal(t, 0, summary.Sent)
}

func TestNotifyEvent_PreferenceDisabled(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Home", Lat: 0, Lng: 0, RadiusKm: 50, IsActive: true},
	}
	users.prefs["u1/earthquake"] = &models.AlertPreference{
		UserID: "u1", DisasterType: models.DisasterTypeEarthquake, MinSeverity: 1, PushEnabled: false,
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	summary := engine.NotifyEvent(context.Background(), testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50))

	assert.Equal(t, 0, summary.Sent)
	assert.Empty(t, sender.messages())
}

func TestNotifyEvent_PreferenceMinSeverity(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Home", Lat: 0, Lng: 0, RadiusKm: 50, IsActive: true},
	}
	users.prefs["u1/earthquake"] = &models.AlertPreference{
		UserID: "u1", DisasterType: models.DisasterTypeEarthquake, MinSeverity: 4, PushEnabled: true,
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	summary := engine.NotifyEvent(context.Background(), testEvent(models.DisasterTypeEarthquake, 3, 0, 0, 50))
	assert.Equal(t, 0, summary.Sent)

	summary = engine.NotifyEvent(context.Background(), testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50))
	assert.Equal(t, 1, summary.Sent)
}

func TestNotifyEvent_NoActiveZones(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	summary := engine.NotifyEvent(context.Background(), testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50))

	assert.Equal(t, 1, summary.UsersScanned)
	assert.Equal(t, 0, summary.Sent)
}

// When several zones match, the record and the message body name the
// closest one.
func TestNotifyEvent_ClosestZoneAttribution(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z-far", UserID: "u1", Name: "Cabin", Lat: 0, Lng: 1.5, RadiusKm: 200, IsActive: true},
		{ID: "z-near", UserID: "u1", Name: "Home", Lat: 0, Lng: 0.5, RadiusKm: 200, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	summary := engine.NotifyEvent(context.Background(), testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50))

	require.Equal(t, 1, summary.Sent)
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0].Body, "Home")
	require.Len(t, users.records, 1)
	assert.Equal(t, "z-near", users.records[0].ZoneID)
}

func TestNotifyEvent_DispatchFailureIsolation(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.devices["u2"] = []models.Device{{UserID: "u2", Token: "tok-2"}}
	zone := models.UserZone{Name: "Home", Lat: 0, Lng: 0, RadiusKm: 50, IsActive: true}
	z1, z2 := zone, zone
	z1.ID, z1.UserID = "z1", "u1"
	z2.ID, z2.UserID = "z2", "u2"
	users.zones["u1"] = []models.UserZone{z1}
	users.zones["u2"] = []models.UserZone{z2}

	sender := newFakeSender()
	sender.failFor["tok-1"] = errors.New("endpoint disabled")
	engine := newTestEngine(users, sender)

	summary := engine.NotifyEvent(context.Background(), testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50))

	assert.Equal(t, 2, summary.UsersScanned)
	assert.Equal(t, 1, summary.Sent)
	assert.Equal(t, 1, summary.Failed)
	msgs := sender.messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "tok-2", msgs[0].Token)
}

func TestNotifyEvent_RecordsNotification(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Home", Lat: 0, Lng: 0, RadiusKm: 50, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	ev := testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50)
	engine.NotifyEvent(context.Background(), ev)

	require.Len(t, users.records, 1)
	rec := users.records[0]
	assert.Equal(t, ev.ID, rec.EventID)
	assert.Equal(t, "u1", rec.UserID)
	assert.Equal(t, "push", rec.Channel)
	assert.False(t, rec.SentAt.IsZero())
}

// blockingSender parks the first dispatch until released, so a test can
// cancel the context while a fan-out invocation is mid-flight.
type blockingSender struct {
	once    sync.Once
	started chan struct{}
	release chan struct{}
}

func (b *blockingSender) Send(ctx context.Context, token, title, body string, data map[string]string) error {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return nil
}

// Cancellation mid-invocation must not wedge the dispatch join: queued
// users still settle (as failures) and NotifyEvent returns.
func TestNotifyEvent_ReturnsAfterCancellation(t *testing.T) {
	users := newFakeUserStore()
	for i := 0; i < 50; i++ {
		id := "u" + strconv.Itoa(i)
		users.devices[id] = []models.Device{{UserID: id, Token: "tok-" + id}}
		users.zones[id] = []models.UserZone{
			{ID: "z-" + id, UserID: id, Name: "Home", Lat: 0, Lng: 0, RadiusKm: 50, IsActive: true},
		}
	}

	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	engine := NewEngine(users, sender, observability.NewMetricsForTesting(),
		clockwork.NewFakeClock(), 2, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan Summary, 1)
	go func() {
		done <- engine.NotifyEvent(ctx, testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50))
	}()

	<-sender.started // first dispatch in flight, the rest queued
	cancel()
	close(sender.release)

	select {
	case summary := <-done:
		if summary.Sent+summary.Failed != summary.UsersScanned {
			t.Errorf("every user must settle: scanned %d, sent %d, failed %d",
				summary.UsersScanned, summary.Sent, summary.Failed)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("NotifyEvent did not return after cancellation")
	}
}

// The broadcaster-subscriber loop is the deployed trigger wiring: one
// published event must reach the sender, and closing the broadcaster
// must stop the loop.
func TestEngine_RunConsumesBroadcast(t *testing.T) {
	users := newFakeUserStore()
	users.devices["u1"] = []models.Device{{UserID: "u1", Token: "tok-1"}}
	users.zones["u1"] = []models.UserZone{
		{ID: "z1", UserID: "u1", Name: "Home", Lat: 0, Lng: 0, RadiusKm: 50, IsActive: true},
	}
	sender := newFakeSender()
	engine := newTestEngine(users, sender)

	b := NewBroadcaster()
	_, ch := b.Subscribe()

	done := make(chan struct{})
	go func() {
		engine.Run(context.Background(), ch)
		close(done)
	}()

	b.Broadcast(testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50))

	require.Eventually(t, func() bool { return len(sender.messages()) == 1 },
		2*time.Second, 10*time.Millisecond)

	b.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit after broadcaster close")
	}
}

func TestComposeMessage_SeismicTitleCarriesMagnitude(t *testing.T) {
	mag := 6.2
	ev := testEvent(models.DisasterTypeEarthquake, 4, 0, 0, 50)
	ev.Magnitude = &mag
	zone := models.UserZone{Name: "Home"}

	title, body := composeMessage(ev, zone, 42)

	assert.Equal(t, "M6.2 Earthquake [CRITICAL]", title)
	assert.Contains(t, body, "42km from Home")
}

func TestComposeMessage_NonSeismicUsesIcon(t *testing.T) {
	ev := testEvent(models.DisasterTypeVolcano, 3, 0, 0, 30)
	zone := models.UserZone{Name: "Village"}

	title, _ := composeMessage(ev, zone, 12)

	assert.Equal(t, "🌋 Volcanic Activity [HIGH]", title)
}
