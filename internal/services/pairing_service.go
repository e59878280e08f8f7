package services

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"schoolpoints/relay/internal/constants"
	"schoolpoints/relay/internal/db/repositories"
	"schoolpoints/relay/internal/logging"
	"schoolpoints/relay/internal/models/dtos/responses"
	"schoolpoints/relay/internal/models/entities"
)

// Codes avoid 0/O/1/I so they survive being read over the phone.
const (
	pairCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	pairCodeLength   = 8
	pairTTL          = 10 * time.Minute
)

// PairingService runs the device handshake: an unauthenticated station asks
// for a short code, an admin approves the code from the web console, and the
// station's next poll claims the tenant credentials exactly once.
type PairingService struct {
	tickets *repositories.PairingRepository
	tenants *repositories.TenantRepository
	baseURL string
	now     func() time.Time
}

func NewPairingService(tickets *repositories.PairingRepository, tenants *repositories.TenantRepository, baseURL string) *PairingService {
	return &PairingService{tickets: tickets, tenants: tenants, baseURL: baseURL, now: time.Now}
}

// Start allocates a fresh pairing code. Collisions with live codes are
// retried; with a 32-symbol alphabet at length 8 they are essentially noise.
func (s *PairingService) Start(ctx context.Context) (*responses.PairStartResult, error) {
	for attempt := 0; attempt < 5; attempt++ {
		code, err := randomPairCode()
		if err != nil {
			return nil, err
		}
		ticket := &entities.PairingTicket{
			Code:      code,
			ExpiresAt: s.now().UTC().Add(pairTTL),
		}
		err = s.tickets.Create(ctx, ticket)
		if errors.Is(err, constants.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return &responses.PairStartResult{
			Code:      code,
			VerifyURL: s.baseURL + "/pair?code=" + code,
			ExpiresIn: int(pairTTL / time.Second),
		}, nil
	}
	return nil, fmt.Errorf("could not allocate a pairing code: %w", constants.ErrConflict)
}

// Approve attaches the admin's tenant credentials to a pending code.
// Re-approving an already approved or consumed code is a no-op, so a double
// tap in the console cannot break a handshake in flight.
func (s *PairingService) Approve(ctx context.Context, tenantID, code string) error {
	code = normalizeCode(code)

	inst, err := s.tenants.GetByTenantID(ctx, tenantID)
	if err != nil {
		return err
	}

	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return err
	}
	if ticket.Consumed() || ticket.Approved() {
		return nil
	}
	if ticket.Expired(s.now().UTC()) {
		return fmt.Errorf("pairing code expired: %w", constants.ErrConflict)
	}

	n, err := s.tickets.Approve(ctx, code, inst.TenantID, inst.APIKey, s.baseURL, s.now().UTC())
	if err != nil {
		return err
	}
	if n == 0 {
		// Lost a race with another approval. Same terminal state either way.
		return nil
	}
	logging.Info("pairing approved", "tenant_id", tenantID, "code", code)
	return nil
}

// Poll reports the handshake state. The first poll after approval atomically
// claims the credentials; every later poll, from anyone, sees only
// "consumed".
func (s *PairingService) Poll(ctx context.Context, code string) (*responses.PairPollResult, error) {
	code = normalizeCode(code)

	ticket, err := s.tickets.GetByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	switch {
	case ticket.Consumed():
		return &responses.PairPollResult{Status: constants.PairStatusConsumed}, nil
	case !ticket.Approved():
		if ticket.Expired(s.now().UTC()) {
			return &responses.PairPollResult{Status: constants.PairStatusExpired}, nil
		}
		return &responses.PairPollResult{Status: constants.PairStatusPending}, nil
	}

	won, err := s.tickets.Consume(ctx, code, s.now().UTC())
	if err != nil {
		return nil, err
	}
	if !won {
		return &responses.PairPollResult{Status: constants.PairStatusConsumed}, nil
	}

	logging.Info("pairing consumed", "tenant_id", ticket.TenantID, "code", code)
	return &responses.PairPollResult{
		Status:   constants.PairStatusReady,
		TenantID: ticket.TenantID,
		APIKey:   ticket.APIKey,
		PushURL:  ticket.PushURL,
	}, nil
}

// PurgeExpired removes stale unapproved tickets. Called by the background
// sweeper.
func (s *PairingService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.tickets.DeleteExpiredPending(ctx, s.now().UTC())
}

// normalizeCode forgives how people type codes: admins read them off a
// station screen and enter them lowercase or with stray whitespace.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomPairCode() (string, error) {
	buf := make([]byte, pairCodeLength)
	if _, err := crand.Read(buf); err != nil {
		return "", fmt.Errorf("generate pairing code: %w", err)
	}
	for i, b := range buf {
		buf[i] = pairCodeAlphabet[int(b)%len(pairCodeAlphabet)]
	}
	return string(buf), nil
}
