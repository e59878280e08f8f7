package responses

// PushResult reports per-batch counters. A resent batch shows up as skipped,
// not applied; semantic apply failures land in Errors without failing the call.
type PushResult struct {
	Received int `json:"received"`
	Applied  int `json:"applied"`
	Skipped  int `json:"skipped"`
	Errors   int `json:"errors"`
}

type PullEvent struct {
	ID         int64  `json:"id"`
	EventID    string `json:"event_id"`
	StationID  string `json:"station_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	ActionType string `json:"action_type"`
	Payload    string `json:"payload_json"`
	CreatedAt  string `json:"created_at,omitempty"`
	ReceivedAt string `json:"received_at,omitempty"`
}

type PullResult struct {
	SinceID     int64       `json:"since_id"`
	NextSinceID int64       `json:"next_since_id"`
	Items       []PullEvent `json:"items"`
}

type SnapshotUploadResult struct {
	Applied map[string]int `json:"applied"`
}

// SnapshotDownloadResult is a full dump of the sync tables plus the current
// event cursor, so a station can resume incremental pulls right away.
type SnapshotDownloadResult struct {
	Cursor int64                       `json:"cursor"`
	Tables map[string][]map[string]any `json:"tables"`
}
