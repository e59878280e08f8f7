package workers

import (
	"context"
	"time"

	"schoolpoints/relay/internal/logging"
	"schoolpoints/relay/internal/services"
)

// PairingExpirer removes pairing tickets that expired without ever being
// approved. Expired-but-present tickets are harmless, polls report them as
// expired, so this is purely hygiene for the device_pairings table.
type PairingExpirer struct {
	pairing  *services.PairingService
	interval time.Duration
}

func NewPairingExpirer(pairing *services.PairingService, interval time.Duration) *PairingExpirer {
	return &PairingExpirer{pairing: pairing, interval: interval}
}

func (e *PairingExpirer) Start(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	logging.Info("pairing expirer started", "interval", e.interval.String())
	for {
		select {
		case <-ctx.Done():
			logging.Info("pairing expirer stopped")
			return
		case <-ticker.C:
			n, err := e.pairing.PurgeExpired(ctx)
			if err != nil {
				logging.Error("pairing purge failed", "error", err.Error())
				continue
			}
			if n > 0 {
				logging.Info("expired pairing tickets purged", "count", n)
			}
		}
	}
}
