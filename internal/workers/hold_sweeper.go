package workers

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/logging"
)

// HoldSweeper deletes expired hold rows across all open tenant stores. Hold
// operations purge on their own inside their transactions; the sweeper keeps
// quiet tenants from accumulating dead rows between requests.
type HoldSweeper struct {
	stores   *db.TenantStores
	interval time.Duration
}

func NewHoldSweeper(stores *db.TenantStores, interval time.Duration) *HoldSweeper {
	return &HoldSweeper{stores: stores, interval: interval}
}

func (s *HoldSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	logging.Info("hold sweeper started", "interval", s.interval.String())
	for {
		select {
		case <-ctx.Done():
			logging.Info("hold sweeper stopped")
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *HoldSweeper) sweep(ctx context.Context) {
	now := time.Now().UTC().Format("2006-01-02 15:04:05")
	s.stores.Each(func(tenantID string, store *sqlx.DB) {
		res, err := store.ExecContext(ctx, `DELETE FROM purchase_holds WHERE expires_at <= ?`, now)
		if err != nil {
			logging.Error("hold sweep failed", "tenant_id", tenantID, "error", err.Error())
			return
		}
		if n, _ := res.RowsAffected(); n > 0 {
			logging.Info("expired holds swept", "tenant_id", tenantID, "count", n)
		}
	})
}
