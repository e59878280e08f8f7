package repositories

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"schoolpoints/relay/internal/constants"
	"schoolpoints/relay/internal/models/entities"
)

// TenantRepository reads and writes the institution registry.
type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(db *gorm.DB) *TenantRepository {
	return &TenantRepository{db: db}
}

func (r *TenantRepository) Create(ctx context.Context, inst *entities.Institution) error {
	if err := r.db.WithContext(ctx).Create(inst).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("tenant %s: %w", inst.TenantID, constants.ErrConflict)
		}
		return fmt.Errorf("create institution: %w", err)
	}
	return nil
}

func (r *TenantRepository) GetByTenantID(ctx context.Context, tenantID string) (*entities.Institution, error) {
	var inst entities.Institution
	err := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("tenant %s: %w", tenantID, constants.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load institution: %w", err)
	}
	return &inst, nil
}

// Authenticate verifies the tenant/key pair. Unknown tenants and wrong keys
// both come back as ErrUnauthorized so callers cannot probe for tenant ids.
func (r *TenantRepository) Authenticate(ctx context.Context, tenantID, apiKey string) (*entities.Institution, error) {
	if tenantID == "" || apiKey == "" {
		return nil, constants.ErrUnauthorized
	}
	inst, err := r.GetByTenantID(ctx, tenantID)
	if errors.Is(err, constants.ErrNotFound) {
		return nil, constants.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}
	if inst.APIKey == "" || inst.APIKey != apiKey {
		return nil, constants.ErrUnauthorized
	}
	return inst, nil
}

func (r *TenantRepository) TenantIDExists(ctx context.Context, tenantID string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entities.Institution{}).
		Where("tenant_id = ?", tenantID).Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check tenant id: %w", err)
	}
	return n > 0, nil
}
