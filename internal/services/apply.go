package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"schoolpoints/relay/internal/constants"
)

// applyError marks a semantic failure in one change: bad payload, missing row,
// unknown change kind. It is isolated to that change and counted; storage
// failures are returned as plain errors and abort the whole batch.
type applyError struct {
	reason string
}

func (e *applyError) Error() string { return e.reason }

func applyErrf(format string, args ...any) error {
	return &applyError{reason: fmt.Sprintf(format, args...)}
}

type applyKey struct {
	entity string
	action string
}

type applyFunc func(ctx context.Context, tx *sqlx.Tx, entityID string, payload []byte, receivedAt string) error

// The dispatch table is closed: a change kind not listed here is a semantic
// error, never a passthrough.
var appliers = map[applyKey]applyFunc{
	{constants.EntityStudentPoints, constants.ActionUpdate}: applyStudentPoints,
	{constants.EntityStudent, constants.ActionUpsert}:       applyStudentUpsert,
	{constants.EntityStudent, constants.ActionDelete}:       applyStudentDelete,
	{constants.EntityProductStock, constants.ActionUpdate}:  applyProductStock,
	{constants.EntitySetting, constants.ActionUpdate}:       applySettingUpdate,
}

func applyChange(ctx context.Context, tx *sqlx.Tx, entityType, actionType, entityID string, payload []byte, receivedAt string) error {
	fn, ok := appliers[applyKey{entityType, actionType}]
	if !ok {
		return applyErrf("no applier for %s/%s", entityType, actionType)
	}
	return fn(ctx, tx, entityID, payload, receivedAt)
}

func parseEntityID(entityID string) (int64, error) {
	id, err := strconv.ParseInt(entityID, 10, 64)
	if err != nil {
		return 0, applyErrf("entity id %q is not numeric", entityID)
	}
	return id, nil
}

// applyStudentPoints merges a points change as a delta against the current
// balance, not as an absolute overwrite. Two stations each awarding points
// offline both land; last-writer-wins would silently drop one of them.
func applyStudentPoints(ctx context.Context, tx *sqlx.Tx, entityID string, payload []byte, receivedAt string) error {
	studentID, err := parseEntityID(entityID)
	if err != nil {
		return err
	}

	var p struct {
		Points      int64  `json:"points"`
		PrevPoints  int64  `json:"prev_points"`
		Reason      string `json:"reason"`
		TeacherName string `json:"teacher_name"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return applyErrf("student_points payload: %v", err)
	}

	delta := p.Points - p.PrevPoints

	res, err := tx.ExecContext(ctx,
		`UPDATE students SET points = points + ?, updated_at = ? WHERE id = ?`,
		delta, receivedAt, studentID)
	if err != nil {
		return fmt.Errorf("apply points delta: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return applyErrf("student %d not found", studentID)
	}

	teacher := p.TeacherName
	if teacher == "" {
		teacher = "Sync"
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO points_log (student_id, points, reason, teacher_name, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		studentID, delta, p.Reason, teacher, receivedAt)
	if err != nil {
		return fmt.Errorf("append points log: %w", err)
	}
	return nil
}

// applyStudentUpsert replaces the student's descriptive fields. Points are
// deliberately left alone; only the delta path above may move them.
func applyStudentUpsert(ctx context.Context, tx *sqlx.Tx, entityID string, payload []byte, receivedAt string) error {
	studentID, err := parseEntityID(entityID)
	if err != nil {
		return err
	}

	var p struct {
		SerialNumber string `json:"serial_number"`
		LastName     string `json:"last_name"`
		FirstName    string `json:"first_name"`
		ClassName    string `json:"class_name"`
		CardNumber   string `json:"card_number"`
		IDNumber     string `json:"id_number"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return applyErrf("student payload: %v", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO students (id, serial_number, last_name, first_name, class_name, card_number, id_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
		  serial_number = excluded.serial_number,
		  last_name     = excluded.last_name,
		  first_name    = excluded.first_name,
		  class_name    = excluded.class_name,
		  card_number   = excluded.card_number,
		  id_number     = excluded.id_number,
		  updated_at    = excluded.updated_at`,
		studentID, p.SerialNumber, p.LastName, p.FirstName, p.ClassName,
		p.CardNumber, p.IDNumber, receivedAt, receivedAt)
	if err != nil {
		return fmt.Errorf("upsert student: %w", err)
	}
	return nil
}

// Deleting an already-deleted student is a no-op, not an error.
func applyStudentDelete(ctx context.Context, tx *sqlx.Tx, entityID string, _ []byte, _ string) error {
	studentID, err := parseEntityID(entityID)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM students WHERE id = ?`, studentID); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}

// applyProductStock merges stock movement as a delta, same reasoning as
// points. Untracked stock (NULL) stays NULL.
func applyProductStock(ctx context.Context, tx *sqlx.Tx, entityID string, payload []byte, _ string) error {
	productID, err := parseEntityID(entityID)
	if err != nil {
		return err
	}

	var p struct {
		StockQty     int64  `json:"stock_qty"`
		PrevStockQty int64  `json:"prev_stock_qty"`
		VariantID    *int64 `json:"variant_id"`
	}
	if err := json.Unmarshal(payload, &p); err != nil {
		return applyErrf("product_stock payload: %v", err)
	}

	delta := p.StockQty - p.PrevStockQty

	var res interface{ RowsAffected() (int64, error) }
	if p.VariantID != nil {
		res, err = tx.ExecContext(ctx,
			`UPDATE product_variants SET stock_qty = stock_qty + ? WHERE id = ? AND product_id = ?`,
			delta, *p.VariantID, productID)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE products SET stock_qty = stock_qty + ? WHERE id = ?`,
			delta, productID)
	}
	if err != nil {
		return fmt.Errorf("apply stock delta: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return applyErrf("product %s not found", entityID)
	}
	return nil
}

func applySettingUpdate(ctx context.Context, tx *sqlx.Tx, entityID string, payload []byte, _ string) error {
	if entityID == "" {
		return applyErrf("setting key is empty")
	}
	if !json.Valid(payload) {
		return applyErrf("setting payload is not valid JSON")
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO settings (key, value_json) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value_json = excluded.value_json`,
		entityID, string(payload))
	if err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}
