package fanout

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/mr1hm/go-shelter-alerts/internal/geo"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
	"github.com/mr1hm/go-shelter-alerts/internal/observability"
	"github.com/mr1hm/go-shelter-alerts/internal/push"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var center = models.Coordinates{Latitude: 52.2297, Longitude: 21.0122}

// north returns a point km kilometers due north of center.
func north(km float64) models.Coordinates {
	return models.Coordinates{
		Latitude:  center.Latitude + km/(geo.EarthRadiusKm*math.Pi/180),
		Longitude: center.Longitude,
	}
}

func device(id string, at models.Coordinates) models.Device {
	lat, lon := at.Latitude, at.Longitude
	return models.Device{DeviceID: id, PushToken: "token-" + id, LastLat: &lat, LastLon: &lon}
}

type mockDevices struct {
	devices []models.Device
	err     error
}

func (m *mockDevices) FindWithPushTokenAndPosition(ctx context.Context) ([]models.Device, error) {
	return m.devices, m.err
}

type mockShelters struct {
	shelters []models.Shelter
	err      error
	calls    int
}

func (m *mockShelters) Candidates(ctx context.Context, point models.Coordinates, radiusKm float64) ([]models.Shelter, error) {
	m.calls++
	return m.shelters, m.err
}

type mockGateway struct {
	mu       sync.Mutex
	sent     []push.Message
	failures map[string]error // keyed by token
}

func (g *mockGateway) Send(ctx context.Context, msg push.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err, ok := g.failures[msg.Token]; ok {
		return err
	}
	g.sent = append(g.sent, msg)
	return nil
}

func (g *mockGateway) tokens() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for _, m := range g.sent {
		out = append(out, m.Token)
	}
	return out
}

func testAlert() *models.Alert {
	return &models.Alert{
		ID:         "alert-1",
		HazardType: models.HazardMissile,
		Severity:   models.SeverityCritical,
		CenterLat:  center.Latitude,
		CenterLon:  center.Longitude,
		RadiusM:    5000,
		ValidUntil: time.Now().Add(time.Hour),
		Status:     models.StatusActive,
	}
}

func openShelter(id int64, at models.Coordinates) models.Shelter {
	return models.Shelter{ID: id, Name: "Shelter", Latitude: at.Latitude, Longitude: at.Longitude, IsOpen: true}
}

func newTestPipeline(devices *mockDevices, shelters *mockShelters, gw *mockGateway, workers int) *Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewPipeline(devices, shelters, gw, Options{Workers: workers}, observability.NewMetricsForTesting(), logger)
}

func TestPipeline_RadiusFilter(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{
		device("inside", north(3)),
		device("outside", north(6)),
	}}
	shelters := &mockShelters{shelters: []models.Shelter{openShelter(1, north(2.5))}}
	gw := &mockGateway{}

	res, err := newTestPipeline(devices, shelters, gw, 4).OnAlertCreated(context.Background(), testAlert())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Candidates)
	assert.Equal(t, 1, res.Affected())
	assert.Equal(t, 1, res.Sent())
	assert.Equal(t, []string{"token-inside"}, gw.tokens())
	assert.False(t, res.Partial)
}

func TestPipeline_SkipsUnreachableDevices(t *testing.T) {
	noToken := device("no-token", north(1))
	noToken.PushToken = ""
	noPos := models.Device{DeviceID: "no-position", PushToken: "tok"}

	devices := &mockDevices{devices: []models.Device{noToken, noPos}}
	gw := &mockGateway{}

	res, err := newTestPipeline(devices, &mockShelters{}, gw, 2).OnAlertCreated(context.Background(), testAlert())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected())
	assert.Empty(t, gw.tokens())
}

func TestPipeline_NoAffectedDevices(t *testing.T) {
	shelters := &mockShelters{}
	res, err := newTestPipeline(&mockDevices{}, shelters, &mockGateway{}, 2).OnAlertCreated(context.Background(), testAlert())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Affected())
	assert.Equal(t, 0, shelters.calls, "shelters should not be fetched when nobody is affected")
}

func TestPipeline_NoOpenShelters(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{
		device("a", north(1)),
		device("b", north(2)),
	}}
	gw := &mockGateway{}

	res, err := newTestPipeline(devices, &mockShelters{}, gw, 2).OnAlertCreated(context.Background(), testAlert())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Affected())
	assert.Equal(t, 0, res.ShelterAssigned())
	assert.Equal(t, 2, res.NoShelter())
	assert.Empty(t, gw.tokens())
	assert.False(t, res.Partial)
}

func TestPipeline_ShelterPrefetchedOnce(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{
		device("a", north(1)),
		device("b", north(2)),
		device("c", north(3)),
	}}
	shelters := &mockShelters{shelters: []models.Shelter{openShelter(1, north(0))}}

	_, err := newTestPipeline(devices, shelters, &mockGateway{}, 3).OnAlertCreated(context.Background(), testAlert())
	require.NoError(t, err)
	assert.Equal(t, 1, shelters.calls)
}

func TestPipeline_OneFailureIsIsolated(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{
		device("a", north(1)),
		device("b", north(2)),
		device("c", north(3)),
	}}
	shelters := &mockShelters{shelters: []models.Shelter{openShelter(1, north(0.5))}}
	gw := &mockGateway{failures: map[string]error{"token-b": errors.New("InvalidRegistration")}}

	res, err := newTestPipeline(devices, shelters, gw, 3).OnAlertCreated(context.Background(), testAlert())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Sent())
	assert.Equal(t, 1, res.Failed())
	assert.ElementsMatch(t, []string{"token-a", "token-c"}, gw.tokens())
	assert.False(t, res.Partial)

	for _, d := range res.Devices {
		if d.DeviceID == "b" {
			assert.EqualError(t, d.Err, "InvalidRegistration")
		}
	}
}

func TestPipeline_GatewayUnavailableAbortsRun(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{
		device("a", north(1)),
		device("b", north(2)),
		device("c", north(3)),
	}}
	shelters := &mockShelters{shelters: []models.Shelter{openShelter(1, north(0.5))}}
	gw := &mockGateway{failures: map[string]error{"token-b": push.ErrUnavailable}}

	res, err := newTestPipeline(devices, shelters, gw, 1).OnAlertCreated(context.Background(), testAlert())
	require.Error(t, err)
	assert.ErrorIs(t, err, push.ErrUnavailable)

	assert.True(t, res.Partial)
	assert.Equal(t, 1, res.Sent())
	assert.Equal(t, 1, res.Failed())
	assert.Equal(t, 1, res.NotAttempted())
}

func TestPipeline_DeviceStoreError(t *testing.T) {
	devices := &mockDevices{err: errors.New("database is locked")}

	res, err := newTestPipeline(devices, &mockShelters{}, &mockGateway{}, 2).OnAlertCreated(context.Background(), testAlert())
	require.Error(t, err)
	assert.Equal(t, 0, res.Sent())
}

func TestPipeline_ShelterStoreErrorReportsPartial(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{device("a", north(1))}}
	shelters := &mockShelters{err: errors.New("database is locked")}

	res, err := newTestPipeline(devices, shelters, &mockGateway{}, 2).OnAlertCreated(context.Background(), testAlert())
	require.Error(t, err)
	assert.True(t, res.Partial)
	assert.Equal(t, 1, res.NotAttempted())
}

func TestPipeline_CancelledContext(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{
		device("a", north(1)),
		device("b", north(2)),
	}}
	shelters := &mockShelters{shelters: []models.Shelter{openShelter(1, north(0.5))}}
	gw := &mockGateway{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newTestPipeline(devices, shelters, gw, 2).OnAlertCreated(ctx, testAlert())
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Partial)
	assert.Equal(t, 2, res.NotAttempted())
	assert.Empty(t, gw.tokens())
}

func TestPipeline_MessageContent(t *testing.T) {
	devices := &mockDevices{devices: []models.Device{device("a", north(1))}}
	shelters := &mockShelters{shelters: []models.Shelter{
		openShelter(7, north(1.5005)),
		openShelter(3, north(4)),
	}}
	gw := &mockGateway{}

	res, err := newTestPipeline(devices, shelters, gw, 1).OnAlertCreated(context.Background(), testAlert())
	require.NoError(t, err)
	require.Len(t, gw.sent, 1)

	msg := gw.sent[0]
	assert.Equal(t, "🚀 Critical Missile", msg.Title)
	assert.Equal(t, "Nearest shelter 500m away, ETA 5min", msg.Body)
	assert.Equal(t, "7", msg.Data["nearest_shelter_id"])
	assert.Equal(t, "navigate_to_shelter", msg.Data["action"])

	require.NotNil(t, res.Devices[0].Shelter)
	assert.Equal(t, int64(7), res.Devices[0].Shelter.ID)
}
