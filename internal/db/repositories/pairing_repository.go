package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"schoolpoints/relay/internal/constants"
	"schoolpoints/relay/internal/models/entities"
)

// PairingRepository persists device-pairing tickets. All state transitions are
// single UPDATE statements guarded by WHERE clauses, so two racing callers can
// never both win the same transition.
type PairingRepository struct {
	db *gorm.DB
}

func NewPairingRepository(db *gorm.DB) *PairingRepository {
	return &PairingRepository{db: db}
}

func (r *PairingRepository) Create(ctx context.Context, ticket *entities.PairingTicket) error {
	err := r.db.WithContext(ctx).Create(ticket).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("pairing code collision: %w", constants.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("create pairing ticket: %w", err)
	}
	return nil
}

func (r *PairingRepository) GetByCode(ctx context.Context, code string) (*entities.PairingTicket, error) {
	var t entities.PairingTicket
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("pairing code: %w", constants.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load pairing ticket: %w", err)
	}
	return &t, nil
}

// Approve attaches credentials to a pending ticket. Returns the number of rows
// moved to approved; zero means the ticket was already approved or consumed.
func (r *PairingRepository) Approve(ctx context.Context, code, tenantID, apiKey, pushURL string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&entities.PairingTicket{}).
		Where("code = ? AND approved_at IS NULL AND consumed_at IS NULL", code).
		Updates(map[string]any{
			"approved_at": now,
			"tenant_id":   tenantID,
			"api_key":     apiKey,
			"push_url":    pushURL,
		})
	if res.Error != nil {
		return 0, fmt.Errorf("approve pairing ticket: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// Consume claims the credentials of an approved ticket. Exactly one caller can
// ever observe true for a given code.
func (r *PairingRepository) Consume(ctx context.Context, code string, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&entities.PairingTicket{}).
		Where("code = ? AND approved_at IS NOT NULL AND consumed_at IS NULL", code).
		Update("consumed_at", now)
	if res.Error != nil {
		return false, fmt.Errorf("consume pairing ticket: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// DeleteExpiredPending removes stale tickets that never got approved. Approved
// tickets are kept even past expiry: the station is entitled to claim
// credentials the admin already granted, however late it polls.
func (r *PairingRepository) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("approved_at IS NULL AND consumed_at IS NULL AND expires_at < ?", now).
		Delete(&entities.PairingTicket{})
	if res.Error != nil {
		return 0, fmt.Errorf("purge pairing tickets: %w", res.Error)
	}
	return res.RowsAffected, nil
}
