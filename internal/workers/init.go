package workers

import (
	"context"
	"time"

	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/services"
)

type WorkersContainer struct {
	Sweeper *HoldSweeper
	Expirer *PairingExpirer
}

func InitWorkers(ctx context.Context, stores *db.TenantStores, pairingSvc *services.PairingService) *WorkersContainer {
	sweeper := NewHoldSweeper(stores, 30*time.Second)
	expirer := NewPairingExpirer(pairingSvc, time.Minute)

	go sweeper.Start(ctx)
	go expirer.Start(ctx)

	return &WorkersContainer{
		Sweeper: sweeper,
		Expirer: expirer,
	}
}
