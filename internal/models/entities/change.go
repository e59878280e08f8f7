package entities

// Change is one row of the append-only audit trail. It is never updated or
// deleted; timestamps are kept as the opaque strings stations sent.
type Change struct {
	ID         int64  `db:"id" gorm:"primaryKey;autoIncrement"`
	TenantID   string `db:"tenant_id" gorm:"index;not null"`
	StationID  string `db:"station_id"`
	EntityType string `db:"entity_type"`
	EntityID   string `db:"entity_id"`
	ActionType string `db:"action_type"`
	Payload    string `db:"payload_json" gorm:"column:payload_json"`
	CreatedAt  string `db:"created_at" gorm:"column:created_at"`
	ReceivedAt string `db:"received_at" gorm:"column:received_at"`
}

func (Change) TableName() string {
	return "changes"
}
