package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/mr1hm/go-shelter-alerts/internal/geo"
	"github.com/mr1hm/go-shelter-alerts/internal/models"
)

func setupTestDB(t *testing.T) *SQLiteDB {
	db, err := NewSQLiteDB(":memory:")
	if err != nil {
		t.Fatalf("failed to create test db: %v", err)
	}
	return db
}

func testAlert(id string, now time.Time) *models.Alert {
	return &models.Alert{
		ID:         id,
		HazardType: models.HazardAirRaid,
		Severity:   models.SeverityHigh,
		CenterLat:  52.2297,
		CenterLon:  21.0122,
		RadiusM:    5000,
		ValidUntil: now.Add(time.Hour),
		Source:     "test",
		CreatedBy:  "creator",
		Status:     models.StatusPending,
		CreatedAt:  now,
	}
}

func TestSQLiteDB_CreateAndGetAlert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	if err := db.CreateAlert(ctx, testAlert("a1", now)); err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}

	got, err := db.GetAlert(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.HazardType != models.HazardAirRaid {
		t.Errorf("expected hazard AIR_RAID, got %s", got.HazardType)
	}
	if got.CreatedBy != "creator" {
		t.Errorf("expected creator, got %q", got.CreatedBy)
	}
	if !got.ValidUntil.Equal(now.Add(time.Hour)) {
		t.Errorf("expected valid_until %v, got %v", now.Add(time.Hour), got.ValidUntil)
	}
	if got.DispatchedAt != nil {
		t.Errorf("expected nil dispatched_at, got %v", got.DispatchedAt)
	}
}

func TestSQLiteDB_GetAlert_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	_, err := db.GetAlert(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteDB_SystemAlertHasNoCreator(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	a := testAlert("sys", time.Now())
	a.CreatedBy = ""
	a.Status = models.StatusActive
	if err := db.CreateAlert(ctx, a); err != nil {
		t.Fatalf("CreateAlert failed: %v", err)
	}

	got, err := db.GetAlert(ctx, "sys")
	if err != nil {
		t.Fatalf("GetAlert failed: %v", err)
	}
	if got.CreatedBy != "" {
		t.Errorf("expected empty creator, got %q", got.CreatedBy)
	}
}

func TestSQLiteDB_ListAlerts_LiveFilter(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()

	alerts := []*models.Alert{
		testAlert("pending", now),
		testAlert("verified", now),
		testAlert("active", now),
		testAlert("rejected", now),
		testAlert("expired", now),
	}
	alerts[1].Status = models.StatusVerified
	alerts[2].Status = models.StatusActive
	alerts[3].Status = models.StatusRejected
	alerts[4].Status = models.StatusActive
	alerts[4].ValidUntil = now.Add(-time.Minute)
	for _, a := range alerts {
		if err := db.CreateAlert(ctx, a); err != nil {
			t.Fatalf("CreateAlert failed: %v", err)
		}
	}

	results, err := db.ListAlerts(ctx, AlertFilter{LiveAt: &now})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 live alerts, got %d", len(results))
	}
	for _, a := range results {
		if a.ID != "verified" && a.ID != "active" {
			t.Errorf("unexpected live alert %s", a.ID)
		}
	}

	count, err := db.CountLiveAlerts(ctx, now)
	if err != nil {
		t.Fatalf("CountLiveAlerts failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 live alerts counted, got %d", count)
	}

	results, err = db.ListAlerts(ctx, AlertFilter{Limit: 3})
	if err != nil {
		t.Fatalf("ListAlerts failed: %v", err)
	}
	if len(results) != 3 {
		t.Errorf("expected 3 alerts with limit, got %d", len(results))
	}
}

func TestSQLiteDB_MarkDispatched(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	db.CreateAlert(ctx, testAlert("d1", now))

	claimed, err := db.MarkDispatched(ctx, "d1", now)
	if err != nil {
		t.Fatalf("MarkDispatched failed: %v", err)
	}
	if !claimed {
		t.Error("expected first claim to succeed")
	}

	claimed, err = db.MarkDispatched(ctx, "d1", now.Add(time.Second))
	if err != nil {
		t.Fatalf("MarkDispatched failed: %v", err)
	}
	if claimed {
		t.Error("expected second claim to be refused")
	}

	claimed, _ = db.MarkDispatched(ctx, "nonexistent", now)
	if claimed {
		t.Error("expected claim on unknown alert to be refused")
	}
}

func TestSQLiteDB_DuplicateAlert(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	a := testAlert("dup", time.Now())

	if err := db.CreateAlert(ctx, a); err != nil {
		t.Fatalf("First CreateAlert failed: %v", err)
	}
	if err := db.CreateAlert(ctx, a); err == nil {
		t.Error("expected error for duplicate ID, got nil")
	}
}

func TestSQLiteDB_UpsertVote(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	db.CreateAlert(ctx, testAlert("v1", now))

	err := db.WithinVoteTx(ctx, func(tx VoteTx) error {
		_, created, err := tx.UpsertVote(ctx, "voter", "v1", models.VoteUp, now)
		if err != nil {
			return err
		}
		if !created {
			t.Error("expected first vote to be created")
		}

		_, created, err = tx.UpsertVote(ctx, "voter", "v1", models.VoteDown, now.Add(time.Second))
		if err != nil {
			return err
		}
		if created {
			t.Error("expected second vote to update the existing row")
		}

		up, down, err := tx.CountByDirection(ctx, "v1")
		if err != nil {
			return err
		}
		if up != 0 || down != 1 {
			t.Errorf("expected 0 up / 1 down, got %d / %d", up, down)
		}
		return tx.UpdateScoreAndStatus(ctx, "v1", up-down, models.StatusPending)
	})
	if err != nil {
		t.Fatalf("WithinVoteTx failed: %v", err)
	}

	n, err := db.CountVotes(ctx, "v1")
	if err != nil {
		t.Fatalf("CountVotes failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected a single vote row, got %d", n)
	}

	got, _ := db.GetAlert(ctx, "v1")
	if got.Score != -1 {
		t.Errorf("expected score -1, got %d", got.Score)
	}
}

func TestSQLiteDB_WithinVoteTx_RollsBack(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	db.CreateAlert(ctx, testAlert("rb", now))

	boom := errors.New("boom")
	err := db.WithinVoteTx(ctx, func(tx VoteTx) error {
		if _, _, err := tx.UpsertVote(ctx, "voter", "rb", models.VoteUp, now); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}

	n, _ := db.CountVotes(ctx, "rb")
	if n != 0 {
		t.Errorf("expected vote to be rolled back, got %d rows", n)
	}
}

func TestSQLiteDB_ConcurrentVotes(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	now := time.Now()
	db.CreateAlert(ctx, testAlert("c1", now))

	const voters = 20
	var wg sync.WaitGroup
	errs := make(chan error, voters)
	for i := 0; i < voters; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			errs <- db.WithinVoteTx(ctx, func(tx VoteTx) error {
				if _, _, err := tx.UpsertVote(ctx, fmt.Sprintf("voter-%d", n), "c1", models.VoteUp, now); err != nil {
					return err
				}
				up, down, err := tx.CountByDirection(ctx, "c1")
				if err != nil {
					return err
				}
				return tx.UpdateScoreAndStatus(ctx, "c1", up-down, models.StatusPending)
			})
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Fatalf("vote failed: %v", err)
		}
	}

	got, _ := db.GetAlert(ctx, "c1")
	if got.Score != voters {
		t.Errorf("expected score %d, got %d", voters, got.Score)
	}
}

func TestSQLiteDB_UpdateScoreAndStatus_NotFound(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	err := db.WithinVoteTx(ctx, func(tx VoteTx) error {
		return tx.UpdateScoreAndStatus(ctx, "missing", 1, models.StatusPending)
	})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestSQLiteDB_Devices(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	lat, lon := 52.23, 21.01
	now := time.Now()

	devices := []*models.Device{
		{DeviceID: "reachable", PushToken: "tok-1", LastLat: &lat, LastLon: &lon, LastSeenAt: &now},
		{DeviceID: "no-token", LastLat: &lat, LastLon: &lon},
		{DeviceID: "no-position", PushToken: "tok-3"},
	}
	for _, d := range devices {
		if err := db.UpsertDevice(ctx, d); err != nil {
			t.Fatalf("UpsertDevice failed: %v", err)
		}
	}

	got, err := db.FindWithPushTokenAndPosition(ctx)
	if err != nil {
		t.Fatalf("FindWithPushTokenAndPosition failed: %v", err)
	}
	if len(got) != 1 || got[0].DeviceID != "reachable" {
		t.Fatalf("expected only the reachable device, got %+v", got)
	}
	if *got[0].LastLat != lat {
		t.Errorf("expected lat %v, got %v", lat, *got[0].LastLat)
	}

	// Re-registering updates the device in place.
	newLat := 50.06
	if err := db.UpsertDevice(ctx, &models.Device{DeviceID: "no-position", PushToken: "tok-3", LastLat: &newLat, LastLon: &lon}); err != nil {
		t.Fatalf("UpsertDevice failed: %v", err)
	}
	got, _ = db.FindWithPushTokenAndPosition(ctx)
	if len(got) != 2 {
		t.Errorf("expected 2 reachable devices after update, got %d", len(got))
	}
}

func TestSQLiteDB_FindOpenInBoundingBox(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	capacity := 200
	shelters := []*models.Shelter{
		{Name: "Metro Centrum", Latitude: 52.2300, Longitude: 21.0100, Capacity: &capacity, IsOpen: true},
		{Name: "Closed Bunker", Latitude: 52.2310, Longitude: 21.0110, IsOpen: false},
		{Name: "Krakow Shelter", Latitude: 50.0647, Longitude: 19.9450, IsOpen: true},
	}
	for _, s := range shelters {
		if err := db.AddShelter(ctx, s); err != nil {
			t.Fatalf("AddShelter failed: %v", err)
		}
		if s.ID == 0 {
			t.Error("expected shelter ID to be assigned")
		}
	}

	box := geo.BoundingBox(52.2297, 21.0122, 10)
	got, err := db.FindOpenInBoundingBox(ctx, box)
	if err != nil {
		t.Fatalf("FindOpenInBoundingBox failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 open shelter in box, got %d", len(got))
	}
	if got[0].Name != "Metro Centrum" {
		t.Errorf("expected Metro Centrum, got %s", got[0].Name)
	}
	if got[0].Capacity == nil || *got[0].Capacity != 200 {
		t.Errorf("expected capacity 200, got %v", got[0].Capacity)
	}
	if got[0].Type != models.ShelterPublic {
		t.Errorf("expected default type PUBLIC, got %s", got[0].Type)
	}

	count, err := db.CountShelters(ctx)
	if err != nil {
		t.Fatalf("CountShelters failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 shelters, got %d", count)
	}
}

func TestSQLiteDB_FindOpenInBoundingBox_Antimeridian(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	shelters := []*models.Shelter{
		{Name: "Taveuni West", Latitude: -16.5, Longitude: -179.99, IsOpen: true},
		{Name: "Taveuni East", Latitude: -16.5, Longitude: 179.98, IsOpen: true},
		{Name: "Greenwich", Latitude: -16.5, Longitude: 0, IsOpen: true},
	}
	for _, s := range shelters {
		if err := db.AddShelter(ctx, s); err != nil {
			t.Fatalf("AddShelter failed: %v", err)
		}
	}

	box := geo.BoundingBox(-16.5, 179.99, 10)
	got, err := db.FindOpenInBoundingBox(ctx, box)
	if err != nil {
		t.Fatalf("FindOpenInBoundingBox failed: %v", err)
	}
	names := make(map[string]bool, len(got))
	for _, s := range got {
		names[s.Name] = true
	}
	if len(got) != 2 || !names["Taveuni West"] || !names["Taveuni East"] {
		t.Errorf("expected both shelters near the antimeridian, got %+v", got)
	}
}

func TestSQLiteDB_ImportShelters(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	ctx := context.Background()
	batch := []models.Shelter{
		{Name: "Metro Centrum", Address: "Marszalkowska 1", Latitude: 52.2300, Longitude: 21.0100, IsOpen: true, Source: "import"},
		{Name: "School Basement", Address: "Nowy Swiat 5", Latitude: 52.2350, Longitude: 21.0180, IsOpen: true},
	}

	created, updated, err := db.ImportShelters(ctx, batch)
	if err != nil {
		t.Fatalf("ImportShelters failed: %v", err)
	}
	if created != 2 || updated != 0 {
		t.Errorf("expected 2 created 0 updated, got %d/%d", created, updated)
	}

	// same identity, now closed
	again := []models.Shelter{{Name: "Metro Centrum", Address: "Marszalkowska 1", Latitude: 52.2300, Longitude: 21.0100, IsOpen: false}}
	created, updated, err = db.ImportShelters(ctx, again)
	if err != nil {
		t.Fatalf("ImportShelters failed: %v", err)
	}
	if created != 0 || updated != 1 {
		t.Errorf("expected 0 created 1 updated, got %d/%d", created, updated)
	}
	if again[0].ID != batch[0].ID {
		t.Errorf("expected update to keep id %d, got %d", batch[0].ID, again[0].ID)
	}

	count, err := db.CountShelters(ctx)
	if err != nil {
		t.Fatalf("CountShelters failed: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 shelters, got %d", count)
	}

	open, err := db.FindOpenInBoundingBox(ctx, geo.BoundingBox(52.2297, 21.0122, 10))
	if err != nil {
		t.Fatalf("FindOpenInBoundingBox failed: %v", err)
	}
	if len(open) != 1 || open[0].Name != "School Basement" {
		t.Errorf("expected only School Basement open, got %+v", open)
	}
}
