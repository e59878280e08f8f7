package holds

import (
	"context"
	"errors"
	"testing"
	"time"

	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/models/dtos/requests"
)

const testTenant = "12345678"

func newManagerFixture(t *testing.T) (*Manager, *db.TenantStores) {
	t.Helper()
	stores := db.NewTenantStores(t.TempDir())
	t.Cleanup(stores.Close)
	return NewManager(stores, time.Minute, nil), stores
}

// recordingInvalidator captures which tenants had their snapshot dropped.
type recordingInvalidator struct {
	tenants []string
}

func (r *recordingInvalidator) Invalidate(_ context.Context, tenantID string) {
	r.tenants = append(r.tenants, tenantID)
}

func execTenant(t *testing.T, stores *db.TenantStores, query string, args ...any) {
	t.Helper()
	store, err := stores.Open(testTenant)
	if err != nil {
		t.Fatalf("open tenant store: %v", err)
	}
	if _, err := store.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func countTenant(t *testing.T, stores *db.TenantStores, query string, args ...any) int64 {
	t.Helper()
	store, err := stores.Open(testTenant)
	if err != nil {
		t.Fatalf("open tenant store: %v", err)
	}
	var n int64
	if err := store.Get(&n, query, args...); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func seedProduct(t *testing.T, stores *db.TenantStores, id int64, stock any) {
	execTenant(t, stores, `INSERT INTO products (id, name, price_points, stock_qty) VALUES (?, 'Prize', 10, ?)`, id, stock)
}

func seedService(t *testing.T, stores *db.TenantStores, id int64, capacity int, date string) {
	execTenant(t, stores, `INSERT INTO scheduled_services (id, name, capacity_per_slot) VALUES (?, 'Haircut', ?)`, id, capacity)
	execTenant(t, stores, `INSERT INTO scheduled_service_dates (service_id, service_date) VALUES (?, ?)`, id, date)
}

func stockReq(station string, student, product, delta int64) *requests.StockHoldRequest {
	return &requests.StockHoldRequest{StationID: station, StudentID: student, ProductID: product, DeltaQty: delta}
}

func schedReq(station string, student, service int64, date, slot string, minutes int) *requests.ScheduledHoldRequest {
	return &requests.ScheduledHoldRequest{
		StationID:       station,
		StudentID:       student,
		ServiceID:       service,
		ServiceDate:     date,
		SlotStartTime:   slot,
		DurationMinutes: minutes,
	}
}

func TestStockHoldPreventsOversell(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedProduct(t, stores, 1, 1)

	res, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, 1))
	if err != nil {
		t.Fatalf("first hold: %v", err)
	}
	if res.HeldQty != 1 {
		t.Fatalf("held = %d, want 1", res.HeldQty)
	}

	_, err = mgr.AdjustStock(context.Background(), testTenant, stockReq("station-b", 2, 1, 1))
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("second hold err = %v, want insufficient stock", err)
	}
}

func TestStockHoldShrinkAndRelease(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedProduct(t, stores, 1, 5)

	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, 5)); err != nil {
		t.Fatalf("grow: %v", err)
	}
	// Fully held: another station gets nothing.
	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-b", 2, 1, 1)); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("competing hold err = %v", err)
	}

	res, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, -5))
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.HeldQty != 0 {
		t.Fatalf("held after release = %d", res.HeldQty)
	}

	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-b", 2, 1, 5)); err != nil {
		t.Fatalf("hold after release: %v", err)
	}
}

func TestStockHoldUntrackedStock(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedProduct(t, stores, 1, nil)

	res, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, 1000))
	if err != nil {
		t.Fatalf("hold on untracked stock: %v", err)
	}
	if res.HeldQty != 1000 {
		t.Fatalf("held = %d", res.HeldQty)
	}
}

func TestStockHoldUnknownProduct(t *testing.T) {
	mgr, _ := newManagerFixture(t)
	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 42, 1)); !errors.Is(err, ErrUnknownProduct) {
		t.Fatalf("err = %v, want unknown product", err)
	}
}

func TestExpiredHoldFreesStock(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedProduct(t, stores, 1, 1)

	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, 1)); err != nil {
		t.Fatalf("hold: %v", err)
	}

	mgr.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-b", 2, 1, 1)); err != nil {
		t.Fatalf("hold after expiry: %v", err)
	}
}

func TestScheduledHoldCapacity(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedService(t, stores, 1, 1, "2026-09-01")

	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-a", 1, 1, "2026-09-01", "10:00", 30)); err != nil {
		t.Fatalf("first hold: %v", err)
	}
	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-b", 2, 1, "2026-09-01", "10:00", 30)); !errors.Is(err, ErrSlotFull) {
		t.Fatalf("second hold err = %v, want slot full", err)
	}
}

func TestScheduledHoldIsIdempotent(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedService(t, stores, 1, 1, "2026-09-01")

	req := schedReq("station-a", 1, 1, "2026-09-01", "10:00", 30)
	for i := 0; i < 3; i++ {
		res, err := mgr.CreateScheduled(context.Background(), testTenant, req)
		if err != nil {
			t.Fatalf("hold %d: %v", i, err)
		}
		if res.Status != "held" {
			t.Fatalf("status = %q", res.Status)
		}
	}
	if n := countTenant(t, stores, `SELECT COUNT(*) FROM purchase_holds`); n != 1 {
		t.Fatalf("%d hold rows, want 1", n)
	}
}

func TestScheduledHoldStudentOverlap(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedService(t, stores, 1, 5, "2026-09-01")
	execTenant(t, stores, `
		INSERT INTO scheduled_service_reservations (service_id, student_id, service_date, slot_start_time, duration_minutes)
		VALUES (1, 1, '2026-09-01', '10:00', 60)`)

	// 10:30 lands inside the student's existing 10:00-11:00 booking.
	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-a", 1, 1, "2026-09-01", "10:30", 30)); !errors.Is(err, ErrStudentBusy) {
		t.Fatalf("overlap err = %v, want student busy", err)
	}

	// 11:00 starts exactly when the booking ends: no overlap.
	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-a", 1, 1, "2026-09-01", "11:00", 30)); err != nil {
		t.Fatalf("adjacent slot: %v", err)
	}
}

func TestScheduledHoldInactiveService(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedService(t, stores, 1, 1, "2026-09-01")
	execTenant(t, stores, `UPDATE scheduled_services SET is_active = 0 WHERE id = 1`)

	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-a", 1, 1, "2026-09-01", "10:00", 30)); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("err = %v, want service unavailable", err)
	}

	// Unknown date on an active service is just as closed.
	execTenant(t, stores, `UPDATE scheduled_services SET is_active = 1 WHERE id = 1`)
	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-a", 1, 1, "2026-12-24", "10:00", 30)); !errors.Is(err, ErrServiceUnavailable) {
		t.Fatalf("unknown date err = %v, want service unavailable", err)
	}
}

func TestScheduledHoldRelease(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedService(t, stores, 1, 1, "2026-09-01")

	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-a", 1, 1, "2026-09-01", "10:00", 30)); err != nil {
		t.Fatalf("hold: %v", err)
	}

	rel := schedReq("station-a", 1, 1, "2026-09-01", "10:00", 30)
	rel.Release = true
	res, err := mgr.CreateScheduled(context.Background(), testTenant, rel)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if res.Status != "released" {
		t.Fatalf("status = %q", res.Status)
	}

	// Slot is free again for someone else.
	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-b", 2, 1, "2026-09-01", "10:00", 30)); err != nil {
		t.Fatalf("hold after release: %v", err)
	}
}

func TestRefreshAndClear(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedProduct(t, stores, 1, 5)

	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, 2)); err != nil {
		t.Fatalf("hold: %v", err)
	}

	ref, err := mgr.Refresh(context.Background(), testTenant, &requests.HoldHeartbeatRequest{StationID: "station-a"})
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if ref.Refreshed != 1 {
		t.Fatalf("refreshed %d holds, want 1", ref.Refreshed)
	}

	cleared, err := mgr.Clear(context.Background(), testTenant, &requests.HoldClearRequest{StationID: "station-a"})
	if err != nil {
		t.Fatalf("clear: %v", err)
	}
	if cleared.Released != 1 {
		t.Fatalf("released %d holds, want 1", cleared.Released)
	}
	if n := countTenant(t, stores, `SELECT COUNT(*) FROM purchase_holds`); n != 0 {
		t.Fatalf("%d hold rows left", n)
	}
}

func TestCommitConvertsHolds(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	seedProduct(t, stores, 1, 5)
	seedService(t, stores, 1, 1, "2026-09-01")

	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, 2)); err != nil {
		t.Fatalf("stock hold: %v", err)
	}
	if _, err := mgr.CreateScheduled(context.Background(), testTenant, schedReq("station-a", 1, 1, "2026-09-01", "10:00", 30)); err != nil {
		t.Fatalf("scheduled hold: %v", err)
	}

	res, err := mgr.Commit(context.Background(), testTenant, &requests.HoldCommitRequest{StationID: "station-a", StudentID: 1})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if res.Purchases != 1 || res.Reservations != 1 {
		t.Fatalf("commit result = %+v", res)
	}

	if n := countTenant(t, stores, `SELECT stock_qty FROM products WHERE id = 1`); n != 3 {
		t.Fatalf("stock after commit = %d, want 3", n)
	}
	if n := countTenant(t, stores, `SELECT COUNT(*) FROM purchases`); n != 1 {
		t.Fatalf("%d purchases", n)
	}
	if n := countTenant(t, stores, `SELECT COUNT(*) FROM scheduled_service_reservations`); n != 1 {
		t.Fatalf("%d reservations", n)
	}
	if n := countTenant(t, stores, `SELECT COUNT(*) FROM purchase_holds`); n != 0 {
		t.Fatalf("%d hold rows left", n)
	}
}

func TestCommitDropsCachedSnapshot(t *testing.T) {
	mgr, stores := newManagerFixture(t)
	inv := &recordingInvalidator{}
	mgr.cache = inv
	seedProduct(t, stores, 1, 5)

	// Holding alone touches no snapshot table; the cached dump stays valid.
	if _, err := mgr.AdjustStock(context.Background(), testTenant, stockReq("station-a", 1, 1, 2)); err != nil {
		t.Fatalf("stock hold: %v", err)
	}
	if len(inv.tenants) != 0 {
		t.Fatalf("hold invalidated the snapshot: %v", inv.tenants)
	}

	// Commit writes purchases and stock, so the cached dump must go.
	if _, err := mgr.Commit(context.Background(), testTenant, &requests.HoldCommitRequest{StationID: "station-a", StudentID: 1}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if len(inv.tenants) != 1 || inv.tenants[0] != testTenant {
		t.Fatalf("invalidated tenants = %v, want [%s]", inv.tenants, testTenant)
	}
}

func TestCommitWithoutHolds(t *testing.T) {
	mgr, _ := newManagerFixture(t)
	if _, err := mgr.Commit(context.Background(), testTenant, &requests.HoldCommitRequest{StationID: "station-a", StudentID: 1}); err == nil {
		t.Fatal("commit with no holds should fail")
	}
}
