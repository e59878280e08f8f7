package repositories

import (
	"context"
	"testing"

	"github.com/jmoiron/sqlx"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/models/entities"
)

func newEventFixture(t *testing.T) *EventRepository {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open central store: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap gorm db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.MigrateCentral(gdb); err != nil {
		t.Fatalf("migrate central store: %v", err)
	}
	return NewEventRepository(sqlx.NewDb(sqlDB, "sqlite3"))
}

func insertEvent(t *testing.T, repo *EventRepository, tenantID, eventID string) bool {
	t.Helper()
	tx, err := repo.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	inserted, err := repo.InsertEvent(context.Background(), tx, &entities.SyncEvent{
		TenantID:   tenantID,
		EventID:    eventID,
		StationID:  "station-a",
		EntityType: "student_points",
		EntityID:   "1",
		ActionType: "update",
		Payload:    `{}`,
	})
	if err != nil {
		t.Fatalf("insert event: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return inserted
}

func TestInsertEventDeduplicates(t *testing.T) {
	repo := newEventFixture(t)

	if !insertEvent(t, repo, "11111111", "station-a:1") {
		t.Fatal("first insert reported as duplicate")
	}
	if insertEvent(t, repo, "11111111", "station-a:1") {
		t.Fatal("duplicate insert reported as new")
	}
	// Same key under another tenant is a different event.
	if !insertEvent(t, repo, "22222222", "station-a:1") {
		t.Fatal("other tenant's event reported as duplicate")
	}
}

func TestPullAndCursor(t *testing.T) {
	repo := newEventFixture(t)

	for i := 1; i <= 3; i++ {
		insertEvent(t, repo, "11111111", "station-a:"+string(rune('0'+i)))
	}

	events, err := repo.Pull(context.Background(), "11111111", 0, 10)
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("pulled %d events, want 3", len(events))
	}
	for i := 1; i < len(events); i++ {
		if events[i].ID <= events[i-1].ID {
			t.Fatalf("ids not ascending: %d then %d", events[i-1].ID, events[i].ID)
		}
	}

	cursor, err := repo.CurrentCursor(context.Background(), "11111111")
	if err != nil {
		t.Fatalf("cursor: %v", err)
	}
	if cursor != events[2].ID {
		t.Fatalf("cursor = %d, want %d", cursor, events[2].ID)
	}

	// Empty tenant reports zero, not an error.
	cursor, err = repo.CurrentCursor(context.Background(), "99999999")
	if err != nil {
		t.Fatalf("empty cursor: %v", err)
	}
	if cursor != 0 {
		t.Fatalf("empty cursor = %d", cursor)
	}

	rest, err := repo.Pull(context.Background(), "11111111", events[1].ID, 10)
	if err != nil {
		t.Fatalf("pull after cursor: %v", err)
	}
	if len(rest) != 1 || rest[0].ID != events[2].ID {
		t.Fatalf("incremental pull = %+v", rest)
	}
}
