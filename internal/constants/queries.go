package constants

// Central-store SQL for the change/event log. Queries use `?` bindvars and are
// passed through sqlx Rebind so the same text works against Postgres in
// production and SQLite in tests.
const (
	InsertChange = `
	INSERT INTO changes (tenant_id, station_id, entity_type, entity_id, action_type, payload_json, created_at, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	// ON CONFLICT DO NOTHING carries the at-most-once guarantee: a resent
	// event under the same (tenant_id, event_id) inserts zero rows.
	InsertSyncEvent = `
	INSERT INTO sync_events (tenant_id, event_id, station_id, change_local_id, entity_type, entity_id, action_type, payload_json, created_at, received_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (tenant_id, event_id) DO NOTHING
	`

	PullSyncEvents = `
	SELECT id, event_id, station_id, entity_type, entity_id, action_type, payload_json, created_at, received_at
	  FROM sync_events
	 WHERE tenant_id = ? AND id > ?
	 ORDER BY id ASC
	 LIMIT ?
	`

	CurrentCursor = `
	SELECT COALESCE(MAX(id), 0) FROM sync_events WHERE tenant_id = ?
	`
)
