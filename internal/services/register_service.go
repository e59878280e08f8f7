package services

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"schoolpoints/relay/internal/auth"
	"schoolpoints/relay/internal/constants"
	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/db/repositories"
	"schoolpoints/relay/internal/logging"
	"schoolpoints/relay/internal/models/dtos/requests"
	"schoolpoints/relay/internal/models/dtos/responses"
	"schoolpoints/relay/internal/models/entities"
)

const adminTokenTTL = time.Hour

// RegisterService onboards institutions and signs admin tokens.
type RegisterService struct {
	tenants *repositories.TenantRepository
	stores  *db.TenantStores
}

func NewRegisterService(tenants *repositories.TenantRepository, stores *db.TenantStores) *RegisterService {
	return &RegisterService{tenants: tenants, stores: stores}
}

// Register creates the institution, mints its API key and provisions its
// store. The generated tenant id is what stations type during pairing, so it
// is short and numeric.
func (s *RegisterService) Register(ctx context.Context, req *requests.RegisterRequest) (*responses.RegisterResult, error) {
	if req.InstitutionName == "" {
		return nil, fmt.Errorf("institution_name is required: %w", constants.ErrInvalid)
	}
	if len(req.Password) < 8 {
		return nil, fmt.Errorf("password must be at least 8 characters: %w", constants.ErrInvalid)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var inst *entities.Institution
	for attempt := 0; attempt < 5; attempt++ {
		tenantID, err := randomTenantID()
		if err != nil {
			return nil, err
		}
		candidate := &entities.Institution{
			TenantID:     tenantID,
			Name:         req.InstitutionName,
			APIKey:       uuid.NewString(),
			PasswordHash: string(hash),
			ContactName:  req.ContactName,
			Email:        req.Email,
			Phone:        req.Phone,
			Plan:         req.Plan,
		}
		err = s.tenants.Create(ctx, candidate)
		if errors.Is(err, constants.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		inst = candidate
		break
	}
	if inst == nil {
		return nil, fmt.Errorf("could not allocate a tenant id: %w", constants.ErrConflict)
	}

	// Provision the store up front so the first push doesn't pay for it.
	if _, err := s.stores.Open(inst.TenantID); err != nil {
		return nil, err
	}

	logging.Info("institution registered", "tenant_id", inst.TenantID, "name", inst.Name)
	return &responses.RegisterResult{TenantID: inst.TenantID, APIKey: inst.APIKey}, nil
}

// AdminLogin checks the institution password and issues a short-lived token
// for console operations like approving device pairings.
func (s *RegisterService) AdminLogin(ctx context.Context, req *requests.AdminLoginRequest) (*responses.AdminLoginResult, error) {
	inst, err := s.tenants.GetByTenantID(ctx, req.TenantID)
	if errors.Is(err, constants.ErrNotFound) {
		return nil, constants.ErrUnauthorized
	}
	if err != nil {
		return nil, err
	}

	if bcrypt.CompareHashAndPassword([]byte(inst.PasswordHash), []byte(req.Password)) != nil {
		return nil, constants.ErrUnauthorized
	}

	token, err := auth.GenerateAdminToken(auth.Secret(), inst.TenantID, adminTokenTTL)
	if err != nil {
		return nil, err
	}
	return &responses.AdminLoginResult{
		Token:     token,
		ExpiresIn: int(adminTokenTTL / time.Second),
	}, nil
}

// Tenant ids are 8 digits with no leading zero.
func randomTenantID() (string, error) {
	n, err := crand.Int(crand.Reader, big.NewInt(90000000))
	if err != nil {
		return "", fmt.Errorf("generate tenant id: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+10000000), nil
}
