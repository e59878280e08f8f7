package entities

import "time"

// Institution is one registered school: its tenant id, shared API key and
// admin password hash. Every other component authenticates against this row.
type Institution struct {
	ID           int64     `db:"id" gorm:"primaryKey;autoIncrement"`
	TenantID     string    `db:"tenant_id" gorm:"uniqueIndex;size:32;not null"`
	Name         string    `db:"name" gorm:"not null"`
	APIKey       string    `db:"api_key" gorm:"column:api_key;index;not null"`
	PasswordHash string    `db:"password_hash"`
	ContactName  string    `db:"contact_name"`
	Email        string    `db:"email"`
	Phone        string    `db:"phone"`
	Plan         string    `db:"plan"`
	CreatedAt    time.Time `db:"created_at"`
}

func (Institution) TableName() string {
	return "institutions"
}
