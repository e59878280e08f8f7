package api

import (
	"os"
	"time"

	"schoolpoints/relay/internal/common"
	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/db/repositories"
	"schoolpoints/relay/internal/holds"
	"schoolpoints/relay/internal/metrics"
	"schoolpoints/relay/internal/services"
)

type Repositories struct {
	Tenants  *repositories.TenantRepository
	Pairings *repositories.PairingRepository
	Events   *repositories.EventRepository
}

type Services struct {
	Cache    *common.CacheService
	Sync     *services.SyncService
	Pairing  *services.PairingService
	Register *services.RegisterService
	Holds    *holds.Manager
	Files    *services.FileSyncService
}

type Dependencies struct {
	Repo     *Repositories
	Services *Services
	Stores   *db.TenantStores
	Metrics  *metrics.MetricsRegistry
}

func InitDependencies(metricsReg *metrics.MetricsRegistry) (*Dependencies, error) {
	dataDir := os.Getenv("DATA_DIR")
	if dataDir == "" {
		dataDir = "./data"
	}
	baseURL := os.Getenv("PUBLIC_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	stores := db.NewTenantStores(dataDir)

	repos := &Repositories{
		Tenants:  repositories.NewTenantRepository(db.PgDB),
		Pairings: repositories.NewPairingRepository(db.PgDB),
		Events:   repositories.NewEventRepository(db.DB),
	}

	snapshotCache := common.NewSnapshotCache(common.NewRedisClient(), 5*time.Minute)
	cacheSvc := common.NewCacheService(time.Minute, 10*time.Minute)

	svcs := &Services{
		Cache:    cacheSvc,
		Sync:     services.NewSyncService(repos.Events, stores, snapshotCache),
		Pairing:  services.NewPairingService(repos.Pairings, repos.Tenants, baseURL),
		Register: services.NewRegisterService(repos.Tenants, stores),
		Holds:    holds.NewManager(stores, 0, snapshotCache),
		Files:    services.NewFileSyncService(dataDir),
	}

	return &Dependencies{
		Repo:     repos,
		Services: svcs,
		Stores:   stores,
		Metrics:  metricsReg,
	}, nil
}
