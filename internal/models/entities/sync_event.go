package entities

// SyncEvent is the deduplicated event stream a station replays after its last
// cursor. ID is the tenant-scoped cursor (strictly increasing per tenant under
// the shared sequence); (TenantID, EventID) is the at-most-once constraint.
type SyncEvent struct {
	ID            int64  `db:"id" gorm:"primaryKey;autoIncrement"`
	TenantID      string `db:"tenant_id" gorm:"uniqueIndex:idx_sync_events_tenant_event;not null"`
	EventID       string `db:"event_id" gorm:"uniqueIndex:idx_sync_events_tenant_event;not null"`
	StationID     string `db:"station_id"`
	ChangeLocalID *int64 `db:"change_local_id"`
	EntityType    string `db:"entity_type"`
	EntityID      string `db:"entity_id"`
	ActionType    string `db:"action_type"`
	Payload       string `db:"payload_json" gorm:"column:payload_json"`
	CreatedAt     string `db:"created_at" gorm:"column:created_at"`
	ReceivedAt    string `db:"received_at" gorm:"column:received_at"`
}

func (SyncEvent) TableName() string {
	return "sync_events"
}
