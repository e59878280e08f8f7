package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"schoolpoints/relay/internal/common"
	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/db/repositories"
	"schoolpoints/relay/internal/models/dtos/requests"
)

func newSyncFixture(t *testing.T) (*SyncService, *db.TenantStores) {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open central store: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap gorm db: %v", err)
	}
	// A :memory: database exists per connection; keep the pool at one.
	sqlDB.SetMaxOpenConns(1)

	if err := db.MigrateCentral(gdb); err != nil {
		t.Fatalf("migrate central store: %v", err)
	}

	central := sqlx.NewDb(sqlDB, "sqlite3")
	stores := db.NewTenantStores(t.TempDir())
	t.Cleanup(stores.Close)

	svc := NewSyncService(repositories.NewEventRepository(central), stores, common.NewSnapshotCache(nil, 0))
	return svc, stores
}

func seedStudent(t *testing.T, stores *db.TenantStores, tenantID string, id, points int64) {
	t.Helper()
	store, err := stores.Open(tenantID)
	if err != nil {
		t.Fatalf("open tenant store: %v", err)
	}
	_, err = store.Exec(`INSERT INTO students (id, first_name, last_name, points) VALUES (?, 'Test', 'Student', ?)`, id, points)
	if err != nil {
		t.Fatalf("seed student: %v", err)
	}
}

func studentPoints(t *testing.T, stores *db.TenantStores, tenantID string, id int64) int64 {
	t.Helper()
	store, err := stores.Open(tenantID)
	if err != nil {
		t.Fatalf("open tenant store: %v", err)
	}
	var points int64
	if err := store.Get(&points, `SELECT points FROM students WHERE id = ?`, id); err != nil {
		t.Fatalf("read points: %v", err)
	}
	return points
}

func i64(v int64) *int64 { return &v }

func pointsChange(localID, studentID, points, prev int64) requests.ChangeItem {
	payload, _ := json.Marshal(map[string]any{
		"points":       points,
		"prev_points":  prev,
		"reason":       "test",
		"teacher_name": "Ms. Test",
	})
	return requests.ChangeItem{
		LocalID:    i64(localID),
		EntityType: "student_points",
		EntityID:   "1",
		ActionType: "update",
		Payload:    payload,
		CreatedAt:  "2026-08-30 10:00:00",
	}
}

func TestPushAppliesAndDeduplicates(t *testing.T) {
	svc, stores := newSyncFixture(t)
	const tenant = "11111111"
	seedStudent(t, stores, tenant, 1, 12)

	req := &requests.SyncPushRequest{
		StationID: "station-a",
		Changes:   []requests.ChangeItem{pointsChange(1, 1, 17, 12)},
	}

	res, err := svc.Push(context.Background(), tenant, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Applied != 1 || res.Skipped != 0 || res.Errors != 0 {
		t.Fatalf("first push counters = %+v", res)
	}
	if got := studentPoints(t, stores, tenant, 1); got != 17 {
		t.Fatalf("points after push = %d, want 17", got)
	}

	// Same batch again: deduplicated, points untouched.
	res, err = svc.Push(context.Background(), tenant, req)
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if res.Skipped != 1 || res.Applied != 0 {
		t.Fatalf("second push counters = %+v", res)
	}
	if got := studentPoints(t, stores, tenant, 1); got != 17 {
		t.Fatalf("points after resend = %d, want 17", got)
	}
}

func TestPushMergesDeltasFromTwoStations(t *testing.T) {
	svc, stores := newSyncFixture(t)
	const tenant = "22222222"
	seedStudent(t, stores, tenant, 1, 10)

	// Both stations saw 10 and awarded points offline.
	_, err := svc.Push(context.Background(), tenant, &requests.SyncPushRequest{
		StationID: "station-a",
		Changes:   []requests.ChangeItem{pointsChange(1, 1, 15, 10)},
	})
	if err != nil {
		t.Fatalf("push a: %v", err)
	}
	_, err = svc.Push(context.Background(), tenant, &requests.SyncPushRequest{
		StationID: "station-b",
		Changes:   []requests.ChangeItem{pointsChange(1, 1, 12, 10)},
	})
	if err != nil {
		t.Fatalf("push b: %v", err)
	}

	// 10 + 5 + 2: neither award is lost.
	if got := studentPoints(t, stores, tenant, 1); got != 17 {
		t.Fatalf("merged points = %d, want 17", got)
	}
}

func TestPushIsolatesBrokenChanges(t *testing.T) {
	svc, stores := newSyncFixture(t)
	const tenant = "33333333"
	seedStudent(t, stores, tenant, 1, 5)

	missing := pointsChange(2, 99, 10, 5)
	missing.EntityID = "99" // no such student

	unknown := requests.ChangeItem{
		LocalID:    i64(3),
		EntityType: "mystery",
		EntityID:   "1",
		ActionType: "update",
		Payload:    json.RawMessage(`{}`),
	}

	res, err := svc.Push(context.Background(), tenant, &requests.SyncPushRequest{
		StationID: "station-a",
		Changes:   []requests.ChangeItem{pointsChange(1, 1, 8, 5), missing, unknown},
	})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Applied != 1 || res.Errors != 2 {
		t.Fatalf("counters = %+v, want 1 applied 2 errors", res)
	}
	if got := studentPoints(t, stores, tenant, 1); got != 8 {
		t.Fatalf("points = %d, want 8", got)
	}

	// Broken changes still land on the event stream for other stations.
	pull, err := svc.Pull(context.Background(), tenant, 0, 10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(pull.Items) != 3 {
		t.Fatalf("pulled %d events, want 3", len(pull.Items))
	}
}

func TestPullIsOrderedAndGapFree(t *testing.T) {
	svc, stores := newSyncFixture(t)
	const tenant = "44444444"
	seedStudent(t, stores, tenant, 1, 0)

	var changes []requests.ChangeItem
	for i := int64(1); i <= 5; i++ {
		changes = append(changes, pointsChange(i, 1, i, i-1))
	}
	if _, err := svc.Push(context.Background(), tenant, &requests.SyncPushRequest{StationID: "station-a", Changes: changes}); err != nil {
		t.Fatalf("push: %v", err)
	}

	var seen []string
	since := int64(0)
	for {
		page, err := svc.Pull(context.Background(), tenant, since, 2)
		if err != nil {
			t.Fatalf("pull: %v", err)
		}
		if len(page.Items) == 0 {
			if page.NextSinceID != since {
				t.Fatalf("empty pull moved cursor: %d -> %d", since, page.NextSinceID)
			}
			break
		}
		last := since
		for _, item := range page.Items {
			if item.ID <= last {
				t.Fatalf("event id %d not ascending past %d", item.ID, last)
			}
			last = item.ID
			seen = append(seen, item.EventID)
		}
		since = page.NextSinceID
	}
	if len(seen) != 5 {
		t.Fatalf("replayed %d events, want 5", len(seen))
	}
}

func TestPullDoesNotLeakAcrossTenants(t *testing.T) {
	svc, stores := newSyncFixture(t)
	seedStudent(t, stores, "55555555", 1, 0)
	seedStudent(t, stores, "66666666", 1, 0)

	if _, err := svc.Push(context.Background(), "55555555", &requests.SyncPushRequest{
		StationID: "station-a",
		Changes:   []requests.ChangeItem{pointsChange(1, 1, 1, 0)},
	}); err != nil {
		t.Fatalf("push: %v", err)
	}

	page, err := svc.Pull(context.Background(), "66666666", 0, 10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(page.Items) != 0 {
		t.Fatalf("tenant 66666666 sees %d foreign events", len(page.Items))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	svc, stores := newSyncFixture(t)
	const tenant = "77777777"
	seedStudent(t, stores, tenant, 1, 3)

	up, err := svc.UploadSnapshot(context.Background(), tenant, &requests.SnapshotUploadRequest{
		Tables: map[string][]map[string]any{
			"students": {
				{"id": 10, "first_name": "New", "last_name": "Roster", "points": 40},
				{"id": 11, "first_name": "Second", "last_name": "Entry", "points": 2},
			},
			"settings": {
				{"key": "shop_open", "value_json": `true`},
			},
		},
	})
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if up.Applied["students"] != 2 || up.Applied["settings"] != 1 {
		t.Fatalf("applied = %+v", up.Applied)
	}

	// The upload replaced the roster wholesale; the seeded student is gone.
	down, _, err := svc.DownloadSnapshot(context.Background(), tenant)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if len(down.Tables["students"]) != 2 {
		t.Fatalf("downloaded %d students, want 2", len(down.Tables["students"]))
	}
	if down.Cursor != 0 {
		t.Fatalf("cursor = %d, want 0 with no events", down.Cursor)
	}
}

func TestMakeEventIDFallbacks(t *testing.T) {
	withLocal := requests.ChangeItem{LocalID: i64(42), CreatedAt: "2026-08-30 10:00:00"}
	if got := makeEventID("st", &withLocal); got != "st:42" {
		t.Fatalf("event id = %q, want st:42", got)
	}

	withClock := requests.ChangeItem{CreatedAt: "2026-08-30 10:00:00"}
	if got := makeEventID("st", &withClock); got != "st:2026-08-30 10:00:00" {
		t.Fatalf("event id = %q", got)
	}

	bare := requests.ChangeItem{}
	a, b := makeEventID("st", &bare), makeEventID("st", &bare)
	if a == b {
		t.Fatalf("keyless changes must not collide: %q", a)
	}
}
