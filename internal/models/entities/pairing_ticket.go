package entities

import "time"

// PairingTicket is a short-lived handshake record. Lifecycle:
// pending -> approved -> consumed (terminal), or pending -> expired (terminal).
// Credentials are attached on approval and handed out exactly once on the
// consuming poll.
type PairingTicket struct {
	ID         int64  `gorm:"primaryKey;autoIncrement"`
	Code       string `gorm:"uniqueIndex;size:16;not null"`
	CreatedAt  time.Time
	ExpiresAt  time.Time `gorm:"index"`
	ApprovedAt *time.Time
	ConsumedAt *time.Time
	TenantID   string
	APIKey     string `gorm:"column:api_key"`
	PushURL    string
}

func (PairingTicket) TableName() string {
	return "device_pairings"
}

// Consumed reports whether the ticket's credentials were already claimed.
func (t *PairingTicket) Consumed() bool {
	return t.ConsumedAt != nil
}

// Approved reports whether an admin attached credentials to the ticket.
func (t *PairingTicket) Approved() bool {
	return t.ApprovedAt != nil
}

// Expired reports whether an unconsumed ticket is past its deadline.
func (t *PairingTicket) Expired(now time.Time) bool {
	return t.ConsumedAt == nil && now.After(t.ExpiresAt)
}
