package holds

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"schoolpoints/relay/internal/constants"
	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/logging"
	"schoolpoints/relay/internal/models/dtos/requests"
	"schoolpoints/relay/internal/models/dtos/responses"
)

// Lease outcomes, all mapped onto the shared error taxonomy.
var (
	ErrInsufficientStock  = fmt.Errorf("insufficient stock: %w", constants.ErrConflict)
	ErrSlotFull           = fmt.Errorf("slot at capacity: %w", constants.ErrConflict)
	ErrStudentBusy        = fmt.Errorf("student has an overlapping booking: %w", constants.ErrConflict)
	ErrServiceUnavailable = fmt.Errorf("service or date not open: %w", constants.ErrNotFound)
	ErrUnknownProduct     = fmt.Errorf("unknown or inactive product: %w", constants.ErrNotFound)
)

const (
	// DefaultTTL bounds how long an untouched hold keeps blocking others.
	// Stations heartbeat to extend it while a cart stays open.
	DefaultTTL = 2 * time.Minute

	timeLayout = "2006-01-02 15:04:05"
	slotLayout = "15:04"
)

// SnapshotInvalidator drops any cached snapshot for a tenant after its data
// changes. Satisfied by *common.SnapshotCache.
type SnapshotInvalidator interface {
	Invalidate(ctx context.Context, tenantID string)
}

// Manager arbitrates short-lived claims on shared inventory and schedule
// slots across a tenant's stations. Every operation runs in one immediate
// transaction on the tenant store, purging expired leases before it looks at
// anything, so decisions never count dead claims.
type Manager struct {
	stores *db.TenantStores
	cache  SnapshotInvalidator
	ttl    time.Duration
	now    func() time.Time
}

func NewManager(stores *db.TenantStores, ttl time.Duration, cache SnapshotInvalidator) *Manager {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Manager{stores: stores, cache: cache, ttl: ttl, now: time.Now}
}

func (m *Manager) deadline(ttlMinutes int) (time.Time, string) {
	ttl := m.ttl
	if ttlMinutes > 0 {
		ttl = time.Duration(ttlMinutes) * time.Minute
	}
	t := m.now().UTC().Add(ttl)
	return t, t.Format(timeLayout)
}

func (m *Manager) nowStr() string {
	return m.now().UTC().Format(timeLayout)
}

func purgeExpired(ctx context.Context, tx *sqlx.Tx, now string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_holds WHERE expires_at <= ?`, now); err != nil {
		return fmt.Errorf("purge expired holds: %w", err)
	}
	return nil
}

// AdjustStock moves the station's held quantity for a product by a delta.
// Growing the hold is refused when unheld stock cannot cover the new total;
// shrinking and releasing always succeed. A zero delta refreshes the lease.
func (m *Manager) AdjustStock(ctx context.Context, tenantID string, req *requests.StockHoldRequest) (*responses.StockHoldResult, error) {
	store, err := m.stores.Open(tenantID)
	if err != nil {
		return nil, err
	}
	tx, err := store.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin hold tx: %w", err)
	}
	defer tx.Rollback()

	if err := purgeExpired(ctx, tx, m.nowStr()); err != nil {
		return nil, err
	}

	var variant *int64
	if req.VariantID != 0 {
		v := req.VariantID
		variant = &v
	}

	stock, err := lookupStock(ctx, tx, req.ProductID, variant)
	if err != nil {
		return nil, err
	}

	var current int64
	err = tx.GetContext(ctx, &current, `
		SELECT COALESCE(SUM(qty), 0) FROM purchase_holds
		WHERE hold_type = ? AND station_id = ? AND student_id = ?
		  AND product_id = ? AND variant_id IS ?`,
		constants.HoldTypeProduct, req.StationID, req.StudentID, req.ProductID, variant)
	if err != nil {
		return nil, fmt.Errorf("sum station holds: %w", err)
	}

	target := current + req.DeltaQty
	if target < 0 {
		target = 0
	}

	if target > current && stock != nil {
		var others int64
		err = tx.GetContext(ctx, &others, `
			SELECT COALESCE(SUM(qty), 0) FROM purchase_holds
			WHERE hold_type = ? AND product_id = ? AND variant_id IS ?
			  AND NOT (station_id = ? AND student_id = ?)`,
			constants.HoldTypeProduct, req.ProductID, variant, req.StationID, req.StudentID)
		if err != nil {
			return nil, fmt.Errorf("sum competing holds: %w", err)
		}
		if target > *stock-others {
			return nil, ErrInsufficientStock
		}
	}

	// One consolidated row per (station, student, product, variant). The
	// adjustment replaces it wholesale, which also renews the lease.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM purchase_holds
		WHERE hold_type = ? AND station_id = ? AND student_id = ?
		  AND product_id = ? AND variant_id IS ?`,
		constants.HoldTypeProduct, req.StationID, req.StudentID, req.ProductID, variant)
	if err != nil {
		return nil, fmt.Errorf("replace hold: %w", err)
	}

	_, expStr := m.deadline(req.TTLMinutes)
	if target > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO purchase_holds
			  (station_id, student_id, hold_type, product_id, variant_id, qty, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			req.StationID, req.StudentID, constants.HoldTypeProduct,
			req.ProductID, variant, target, expStr)
		if err != nil {
			return nil, fmt.Errorf("insert hold: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit hold tx: %w", err)
	}

	res := &responses.StockHoldResult{HeldQty: target}
	if target > 0 {
		res.ExpiresAt = expStr
	}
	return res, nil
}

// lookupStock returns the tracked quantity for a product or variant. A nil
// result means stock is untracked and holds are never refused for it.
func lookupStock(ctx context.Context, tx *sqlx.Tx, productID int64, variant *int64) (*int64, error) {
	var row struct {
		StockQty *int64 `db:"stock_qty"`
		IsActive int    `db:"is_active"`
	}
	var err error
	if variant != nil {
		err = tx.GetContext(ctx, &row,
			`SELECT stock_qty, is_active FROM product_variants WHERE id = ? AND product_id = ?`,
			*variant, productID)
	} else {
		err = tx.GetContext(ctx, &row,
			`SELECT stock_qty, is_active FROM products WHERE id = ?`, productID)
	}
	if err != nil {
		return nil, ErrUnknownProduct
	}
	if row.IsActive == 0 {
		return nil, ErrUnknownProduct
	}
	return row.StockQty, nil
}

// CreateScheduled books a lease on one service slot for a student, or
// releases it when the request says so. Re-sending the same hold refreshes
// the lease instead of double-booking.
func (m *Manager) CreateScheduled(ctx context.Context, tenantID string, req *requests.ScheduledHoldRequest) (*responses.ScheduledHoldResult, error) {
	startMin, err := slotMinutes(req.SlotStartTime)
	if err != nil {
		return nil, err
	}
	if req.DurationMinutes <= 0 {
		return nil, fmt.Errorf("duration must be positive: %w", constants.ErrInvalid)
	}
	endMin := startMin + req.DurationMinutes

	store, err := m.stores.Open(tenantID)
	if err != nil {
		return nil, err
	}
	tx, err := store.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin hold tx: %w", err)
	}
	defer tx.Rollback()

	if err := purgeExpired(ctx, tx, m.nowStr()); err != nil {
		return nil, err
	}

	if req.Release {
		_, err = tx.ExecContext(ctx, `
			DELETE FROM purchase_holds
			WHERE hold_type = ? AND station_id = ? AND student_id = ?
			  AND service_id = ? AND service_date = ? AND slot_start_time = ?`,
			constants.HoldTypeScheduled, req.StationID, req.StudentID,
			req.ServiceID, req.ServiceDate, req.SlotStartTime)
		if err != nil {
			return nil, fmt.Errorf("release scheduled hold: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit hold tx: %w", err)
		}
		return &responses.ScheduledHoldResult{Status: "released"}, nil
	}

	capacity, err := lookupSlot(ctx, tx, req.ServiceID, req.ServiceDate)
	if err != nil {
		return nil, err
	}

	_, expStr := m.deadline(req.TTLMinutes)

	// Same station re-holding the same slot just renews the lease.
	res, err := tx.ExecContext(ctx, `
		UPDATE purchase_holds SET expires_at = ?, duration_minutes = ?
		WHERE hold_type = ? AND station_id = ? AND student_id = ?
		  AND service_id = ? AND service_date = ? AND slot_start_time = ?`,
		expStr, req.DurationMinutes,
		constants.HoldTypeScheduled, req.StationID, req.StudentID,
		req.ServiceID, req.ServiceDate, req.SlotStartTime)
	if err != nil {
		return nil, fmt.Errorf("refresh scheduled hold: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit hold tx: %w", err)
		}
		return &responses.ScheduledHoldResult{Status: "held", ExpiresAt: expStr}, nil
	}

	busy, err := studentOverlaps(ctx, tx, req, startMin, endMin)
	if err != nil {
		return nil, err
	}
	if busy {
		return nil, ErrStudentBusy
	}

	taken, err := slotUsage(ctx, tx, req)
	if err != nil {
		return nil, err
	}
	if taken >= capacity {
		return nil, ErrSlotFull
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchase_holds
		  (station_id, student_id, hold_type, service_id, service_date,
		   slot_start_time, duration_minutes, qty, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?)`,
		req.StationID, req.StudentID, constants.HoldTypeScheduled,
		req.ServiceID, req.ServiceDate, req.SlotStartTime, req.DurationMinutes, expStr)
	if err != nil {
		return nil, fmt.Errorf("insert scheduled hold: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit hold tx: %w", err)
	}
	return &responses.ScheduledHoldResult{Status: "held", ExpiresAt: expStr}, nil
}

func lookupSlot(ctx context.Context, tx *sqlx.Tx, serviceID int64, date string) (int, error) {
	var svc struct {
		Capacity int `db:"capacity_per_slot"`
		IsActive int `db:"is_active"`
	}
	err := tx.GetContext(ctx, &svc,
		`SELECT capacity_per_slot, is_active FROM scheduled_services WHERE id = ?`, serviceID)
	if err != nil || svc.IsActive == 0 {
		return 0, ErrServiceUnavailable
	}

	var dateActive int
	err = tx.GetContext(ctx, &dateActive,
		`SELECT is_active FROM scheduled_service_dates WHERE service_id = ? AND service_date = ?`,
		serviceID, date)
	if err != nil || dateActive == 0 {
		return 0, ErrServiceUnavailable
	}
	return svc.Capacity, nil
}

// studentOverlaps reports whether the student already has a reservation or a
// live hold on the same date whose time window intersects [startMin, endMin).
// Holds from every station count, any service included.
func studentOverlaps(ctx context.Context, tx *sqlx.Tx, req *requests.ScheduledHoldRequest, startMin, endMin int) (bool, error) {
	type window struct {
		Start    string `db:"slot_start_time"`
		Duration int    `db:"duration_minutes"`
	}

	var windows []window
	err := tx.SelectContext(ctx, &windows, `
		SELECT slot_start_time, duration_minutes FROM scheduled_service_reservations
		WHERE student_id = ? AND service_date = ?`,
		req.StudentID, req.ServiceDate)
	if err != nil {
		return false, fmt.Errorf("load reservations: %w", err)
	}

	var held []window
	err = tx.SelectContext(ctx, &held, `
		SELECT slot_start_time, duration_minutes FROM purchase_holds
		WHERE hold_type = ? AND student_id = ? AND service_date = ?`,
		constants.HoldTypeScheduled, req.StudentID, req.ServiceDate)
	if err != nil {
		return false, fmt.Errorf("load student holds: %w", err)
	}
	windows = append(windows, held...)

	for _, w := range windows {
		ws, err := slotMinutes(w.Start)
		if err != nil {
			logging.Warn("skipping unparseable slot time", "slot", w.Start)
			continue
		}
		if startMin < ws+w.Duration && ws < endMin {
			return true, nil
		}
	}
	return false, nil
}

// slotUsage counts committed reservations plus live holds on the exact slot.
func slotUsage(ctx context.Context, tx *sqlx.Tx, req *requests.ScheduledHoldRequest) (int, error) {
	var reserved int
	err := tx.GetContext(ctx, &reserved, `
		SELECT COUNT(*) FROM scheduled_service_reservations
		WHERE service_id = ? AND service_date = ? AND slot_start_time = ?`,
		req.ServiceID, req.ServiceDate, req.SlotStartTime)
	if err != nil {
		return 0, fmt.Errorf("count reservations: %w", err)
	}

	var heldCount int
	err = tx.GetContext(ctx, &heldCount, `
		SELECT COUNT(*) FROM purchase_holds
		WHERE hold_type = ? AND service_id = ? AND service_date = ? AND slot_start_time = ?`,
		constants.HoldTypeScheduled, req.ServiceID, req.ServiceDate, req.SlotStartTime)
	if err != nil {
		return 0, fmt.Errorf("count slot holds: %w", err)
	}
	return reserved + heldCount, nil
}

// Refresh extends the lease on a station's live holds. Expired holds stay
// expired; the station has to re-acquire them.
func (m *Manager) Refresh(ctx context.Context, tenantID string, req *requests.HoldHeartbeatRequest) (*responses.HoldRefreshResult, error) {
	store, err := m.stores.Open(tenantID)
	if err != nil {
		return nil, err
	}

	_, expStr := m.deadline(req.TTLMinutes)

	query := `UPDATE purchase_holds SET expires_at = ? WHERE station_id = ? AND expires_at > ?`
	args := []any{expStr, req.StationID, m.nowStr()}
	if req.StudentID != nil {
		query += ` AND student_id = ?`
		args = append(args, *req.StudentID)
	}

	res, err := store.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("refresh holds: %w", err)
	}
	n, _ := res.RowsAffected()
	return &responses.HoldRefreshResult{Refreshed: n, ExpiresAt: expStr}, nil
}

// Clear drops a station's holds outright, optionally scoped to one student.
func (m *Manager) Clear(ctx context.Context, tenantID string, req *requests.HoldClearRequest) (*responses.HoldClearResult, error) {
	store, err := m.stores.Open(tenantID)
	if err != nil {
		return nil, err
	}

	query := `DELETE FROM purchase_holds WHERE station_id = ?`
	args := []any{req.StationID}
	if req.StudentID != nil {
		query += ` AND student_id = ?`
		args = append(args, *req.StudentID)
	}

	res, err := store.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("clear holds: %w", err)
	}
	n, _ := res.RowsAffected()
	return &responses.HoldClearResult{Released: n}, nil
}

// Commit converts the station's live holds for one student into purchase and
// reservation rows, decrementing tracked stock. Everything lands in a single
// transaction; a stock shortfall discovered mid-commit rolls it all back.
func (m *Manager) Commit(ctx context.Context, tenantID string, req *requests.HoldCommitRequest) (*responses.HoldCommitResult, error) {
	store, err := m.stores.Open(tenantID)
	if err != nil {
		return nil, err
	}
	tx, err := store.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer tx.Rollback()

	if err := purgeExpired(ctx, tx, m.nowStr()); err != nil {
		return nil, err
	}

	type holdRow struct {
		ID              int64   `db:"id"`
		HoldType        string  `db:"hold_type"`
		ProductID       *int64  `db:"product_id"`
		VariantID       *int64  `db:"variant_id"`
		Qty             int64   `db:"qty"`
		ServiceID       *int64  `db:"service_id"`
		ServiceDate     *string `db:"service_date"`
		SlotStartTime   *string `db:"slot_start_time"`
		DurationMinutes *int    `db:"duration_minutes"`
	}

	var rows []holdRow
	err = tx.SelectContext(ctx, &rows, `
		SELECT id, hold_type, product_id, variant_id, qty,
		       service_id, service_date, slot_start_time, duration_minutes
		FROM purchase_holds
		WHERE station_id = ? AND student_id = ?
		ORDER BY id ASC`,
		req.StationID, req.StudentID)
	if err != nil {
		return nil, fmt.Errorf("load holds: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no live holds to commit: %w", constants.ErrNotFound)
	}

	result := &responses.HoldCommitResult{}
	nowStr := m.nowStr()

	for _, h := range rows {
		switch h.HoldType {
		case constants.HoldTypeProduct:
			if err := commitStock(ctx, tx, &req.StudentID, req.StationID, h.ProductID, h.VariantID, h.Qty, nowStr); err != nil {
				return nil, err
			}
			result.Purchases++
		case constants.HoldTypeScheduled:
			_, err = tx.ExecContext(ctx, `
				INSERT INTO scheduled_service_reservations
				  (service_id, student_id, service_date, slot_start_time,
				   duration_minutes, station_id, created_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				h.ServiceID, req.StudentID, h.ServiceDate, h.SlotStartTime,
				h.DurationMinutes, req.StationID, nowStr)
			if err != nil {
				return nil, fmt.Errorf("insert reservation: %w", err)
			}
			result.Reservations++
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_holds WHERE id = ?`, h.ID); err != nil {
			return nil, fmt.Errorf("retire hold: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit holds tx: %w", err)
	}

	// Purchases, reservations and stock levels all show up in snapshot
	// downloads; a cached dump is stale from here on.
	if m.cache != nil {
		m.cache.Invalidate(ctx, tenantID)
	}
	return result, nil
}

func commitStock(ctx context.Context, tx *sqlx.Tx, studentID *int64, stationID string, productID, variantID *int64, qty int64, nowStr string) error {
	var res interface{ RowsAffected() (int64, error) }
	var err error
	if variantID != nil {
		res, err = tx.ExecContext(ctx, `
			UPDATE product_variants SET stock_qty = stock_qty - ?
			WHERE id = ? AND (stock_qty IS NULL OR stock_qty >= ?)`,
			qty, *variantID, qty)
	} else {
		res, err = tx.ExecContext(ctx, `
			UPDATE products SET stock_qty = stock_qty - ?
			WHERE id = ? AND (stock_qty IS NULL OR stock_qty >= ?)`,
			qty, *productID, qty)
	}
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrInsufficientStock
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO purchases (student_id, product_id, variant_id, qty, station_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		studentID, productID, variantID, qty, stationID, nowStr)
	if err != nil {
		return fmt.Errorf("insert purchase: %w", err)
	}
	return nil
}

func slotMinutes(s string) (int, error) {
	t, err := time.Parse(slotLayout, s)
	if err != nil {
		return 0, fmt.Errorf("bad slot time %q: %w", s, constants.ErrInvalid)
	}
	return t.Hour()*60 + t.Minute(), nil
}
