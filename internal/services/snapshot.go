package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"schoolpoints/relay/internal/logging"
	"schoolpoints/relay/internal/models/dtos/requests"
	"schoolpoints/relay/internal/models/dtos/responses"
)

// snapshotTables is the closed list of tenant tables a snapshot may touch,
// with the columns accepted for each. Table and column names in uploaded
// payloads never reach SQL directly; only names from this list do.
var snapshotTables = []struct {
	name string
	cols []string
}{
	{"students", []string{"id", "serial_number", "last_name", "first_name", "class_name", "points", "card_number", "id_number", "created_at", "updated_at"}},
	{"points_log", []string{"id", "student_id", "points", "reason", "teacher_name", "created_at"}},
	{"teachers", []string{"id", "name", "card_number", "is_admin"}},
	{"products", []string{"id", "name", "price_points", "stock_qty", "is_active"}},
	{"product_variants", []string{"id", "product_id", "name", "stock_qty", "is_active"}},
	{"scheduled_services", []string{"id", "name", "capacity_per_slot", "is_active"}},
	{"scheduled_service_dates", []string{"service_id", "service_date", "is_active"}},
	{"scheduled_service_reservations", []string{"id", "service_id", "student_id", "service_date", "slot_start_time", "duration_minutes", "station_id", "created_at"}},
	{"purchases", []string{"id", "student_id", "product_id", "variant_id", "qty", "station_id", "created_at"}},
	{"settings", []string{"key", "value_json"}},
}

// UploadSnapshot replaces whole tenant tables with the station's authoritative
// copy. All named tables are swapped in one transaction; a failure part way
// leaves the previous contents untouched.
func (s *SyncService) UploadSnapshot(ctx context.Context, tenantID string, req *requests.SnapshotUploadRequest) (*responses.SnapshotUploadResult, error) {
	store, err := s.stores.Open(tenantID)
	if err != nil {
		return nil, err
	}

	known := make(map[string]bool, len(snapshotTables))
	for _, spec := range snapshotTables {
		known[spec.name] = true
	}
	for name := range req.Tables {
		if !known[name] {
			logging.Warn("ignoring unknown snapshot table", "tenant_id", tenantID, "table", name)
		}
	}

	tx, err := store.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback()

	applied := make(map[string]int)
	for _, spec := range snapshotTables {
		rows, ok := req.Tables[spec.name]
		if !ok {
			continue
		}
		n, err := replaceTable(ctx, tx, spec.name, spec.cols, rows)
		if err != nil {
			return nil, err
		}
		applied[spec.name] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit snapshot tx: %w", err)
	}

	s.cache.Invalidate(ctx, tenantID)
	logging.Info("snapshot uploaded", "tenant_id", tenantID, "tables", len(applied))
	return &responses.SnapshotUploadResult{Applied: applied}, nil
}

func replaceTable(ctx context.Context, tx *sqlx.Tx, table string, cols []string, rows []map[string]any) (int, error) {
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
		return 0, fmt.Errorf("clear %s: %w", table, err)
	}

	inserted := 0
	for _, row := range rows {
		var useCols []string
		var args []any
		for _, c := range cols {
			if v, ok := row[c]; ok {
				useCols = append(useCols, c)
				args = append(args, v)
			}
		}
		if len(useCols) == 0 {
			continue
		}
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
			table,
			strings.Join(useCols, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(useCols)), ", "))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		inserted++
	}
	return inserted, nil
}

// DownloadSnapshot dumps every snapshot table plus the current event cursor.
// The station persists the cursor and continues with incremental pulls from
// there. Dumps are cached until the next write for the tenant; the bool
// reports whether this one came from the cache.
func (s *SyncService) DownloadSnapshot(ctx context.Context, tenantID string) (*responses.SnapshotDownloadResult, bool, error) {
	if raw, ok := s.cache.Get(ctx, tenantID); ok {
		var cached responses.SnapshotDownloadResult
		if err := json.Unmarshal(raw, &cached); err == nil {
			return &cached, true, nil
		}
	}

	// Cursor first: a push landing between the cursor read and the dump
	// makes the dump slightly newer than the cursor, so the station may
	// re-pull an event it already has in the dump. Deltas tolerate that
	// better than a cursor pointing past data the dump is missing.
	cursor, err := s.events.CurrentCursor(ctx, tenantID)
	if err != nil {
		return nil, false, err
	}

	store, err := s.stores.Open(tenantID)
	if err != nil {
		return nil, false, err
	}

	result := &responses.SnapshotDownloadResult{
		Cursor: cursor,
		Tables: make(map[string][]map[string]any, len(snapshotTables)),
	}
	for _, spec := range snapshotTables {
		rows, err := dumpTable(ctx, store, spec.name)
		if err != nil {
			return nil, false, err
		}
		result.Tables[spec.name] = rows
	}

	if raw, err := json.Marshal(result); err == nil {
		s.cache.Set(ctx, tenantID, raw)
	}
	return result, false, nil
}

func dumpTable(ctx context.Context, store *sqlx.DB, table string) ([]map[string]any, error) {
	dbRows, err := store.QueryxContext(ctx, "SELECT * FROM "+table)
	if err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	defer dbRows.Close()

	out := make([]map[string]any, 0)
	for dbRows.Next() {
		row := map[string]any{}
		if err := dbRows.MapScan(row); err != nil {
			return nil, fmt.Errorf("scan %s: %w", table, err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out = append(out, row)
	}
	if err := dbRows.Err(); err != nil {
		return nil, fmt.Errorf("dump %s: %w", table, err)
	}
	return out, nil
}
