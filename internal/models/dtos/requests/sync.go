package requests

import "encoding/json"

// ChangeItem is one buffered station mutation inside a push batch. LocalID is
// the station-local sequence number; together with the station id it forms the
// idempotency key for the event stream.
type ChangeItem struct {
	LocalID    *int64          `json:"local_id,omitempty"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	ActionType string          `json:"action_type"`
	Payload    json.RawMessage `json:"payload_json,omitempty"`
	CreatedAt  string          `json:"created_at,omitempty"`
}

type SyncPushRequest struct {
	StationID string       `json:"station_id"`
	Changes   []ChangeItem `json:"changes"`
}

// SnapshotUploadRequest carries the full contents of a station's sync tables.
// Each named table is replaced wholesale inside one tenant-store transaction.
type SnapshotUploadRequest struct {
	Tables map[string][]map[string]any `json:"tables"`
}
