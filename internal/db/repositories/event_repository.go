package repositories

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"schoolpoints/relay/internal/constants"
	"schoolpoints/relay/internal/models/entities"
)

// EventRepository owns the append-only change log and the deduplicated
// sync_events stream. Writes happen inside a caller-held transaction so a
// whole push batch commits or rolls back together.
type EventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Begin(ctx context.Context) (*sqlx.Tx, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin central tx: %w", err)
	}
	return tx, nil
}

// AppendChange writes the audit-trail row. It is unconditional: duplicates in
// the event stream still leave a trace here.
func (r *EventRepository) AppendChange(ctx context.Context, tx *sqlx.Tx, ch *entities.Change) error {
	_, err := tx.ExecContext(ctx, tx.Rebind(constants.InsertChange),
		ch.TenantID, ch.StationID, ch.EntityType, ch.EntityID, ch.ActionType,
		ch.Payload, ch.CreatedAt, ch.ReceivedAt)
	if err != nil {
		return fmt.Errorf("append change: %w", err)
	}
	return nil
}

// InsertEvent inserts into the dedup stream. Returns false when the
// idempotency key was already seen for this tenant.
func (r *EventRepository) InsertEvent(ctx context.Context, tx *sqlx.Tx, ev *entities.SyncEvent) (bool, error) {
	res, err := tx.ExecContext(ctx, tx.Rebind(constants.InsertSyncEvent),
		ev.TenantID, ev.EventID, ev.StationID, ev.ChangeLocalID,
		ev.EntityType, ev.EntityID, ev.ActionType, ev.Payload,
		ev.CreatedAt, ev.ReceivedAt)
	if err != nil {
		return false, fmt.Errorf("insert sync event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert sync event: %w", err)
	}
	return n == 1, nil
}

// Pull returns events after the cursor, ascending, up to limit. Read-only.
func (r *EventRepository) Pull(ctx context.Context, tenantID string, since int64, limit int) ([]entities.SyncEvent, error) {
	var events []entities.SyncEvent
	err := r.db.SelectContext(ctx, &events, r.db.Rebind(constants.PullSyncEvents),
		tenantID, since, limit)
	if err != nil {
		return nil, fmt.Errorf("pull sync events: %w", err)
	}
	return events, nil
}

// CurrentCursor returns the highest cursor recorded for the tenant.
func (r *EventRepository) CurrentCursor(ctx context.Context, tenantID string) (int64, error) {
	var cursor int64
	err := r.db.GetContext(ctx, &cursor, r.db.Rebind(constants.CurrentCursor), tenantID)
	if err != nil {
		return 0, fmt.Errorf("read cursor: %w", err)
	}
	return cursor, nil
}
