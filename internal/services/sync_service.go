package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"schoolpoints/relay/internal/common"
	"schoolpoints/relay/internal/constants"
	appcontext "schoolpoints/relay/internal/context"
	"schoolpoints/relay/internal/db"
	"schoolpoints/relay/internal/db/repositories"
	"schoolpoints/relay/internal/logging"
	"schoolpoints/relay/internal/models/dtos/requests"
	"schoolpoints/relay/internal/models/dtos/responses"
	"schoolpoints/relay/internal/models/entities"
)

const (
	wireTimeLayout = "2006-01-02 15:04:05"

	defaultPullLimit = 500
	maxPullLimit     = 1000
)

// SyncService ingests station change batches into the central log and merges
// them into the tenant store, and serves incremental pulls off the event
// stream.
type SyncService struct {
	events *repositories.EventRepository
	stores *db.TenantStores
	cache  *common.SnapshotCache
	now    func() time.Time
}

func NewSyncService(events *repositories.EventRepository, stores *db.TenantStores, cache *common.SnapshotCache) *SyncService {
	return &SyncService{events: events, stores: stores, cache: cache, now: time.Now}
}

// Push records a station batch. Each change is logged, deduplicated by its
// idempotency key, and merged into the tenant store. A resent batch counts as
// skipped; a semantically broken change counts as an error without sinking
// its siblings. The event log commits before the tenant merge, so a crash
// between the two never hands out a cursor for events that were not logged.
func (s *SyncService) Push(ctx context.Context, tenantID string, req *requests.SyncPushRequest) (*responses.PushResult, error) {
	if req.StationID == "" {
		return nil, fmt.Errorf("station_id is required: %w", constants.ErrInvalid)
	}

	store, err := s.stores.Open(tenantID)
	if err != nil {
		return nil, err
	}

	centralTx, err := s.events.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer centralTx.Rollback()

	tenantTx, err := store.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tenant tx: %w", err)
	}
	defer tenantTx.Rollback()

	receivedAt := s.now().UTC().Format(wireTimeLayout)
	log := logging.WithTenant(appRequestID(ctx), tenantID, req.StationID, "sync/push")

	result := &responses.PushResult{}
	for i := range req.Changes {
		item := &req.Changes[i]
		result.Received++

		eventID := makeEventID(req.StationID, item)
		payload := string(item.Payload)

		err = s.events.AppendChange(ctx, centralTx, &entities.Change{
			TenantID:   tenantID,
			StationID:  req.StationID,
			EntityType: item.EntityType,
			EntityID:   item.EntityID,
			ActionType: item.ActionType,
			Payload:    payload,
			CreatedAt:  item.CreatedAt,
			ReceivedAt: receivedAt,
		})
		if err != nil {
			return nil, err
		}

		inserted, err := s.events.InsertEvent(ctx, centralTx, &entities.SyncEvent{
			TenantID:      tenantID,
			EventID:       eventID,
			StationID:     req.StationID,
			ChangeLocalID: item.LocalID,
			EntityType:    item.EntityType,
			EntityID:      item.EntityID,
			ActionType:    item.ActionType,
			Payload:       payload,
			CreatedAt:     item.CreatedAt,
			ReceivedAt:    receivedAt,
		})
		if err != nil {
			return nil, err
		}
		if !inserted {
			result.Skipped++
			continue
		}

		err = applyChange(ctx, tenantTx, item.EntityType, item.ActionType, item.EntityID, item.Payload, receivedAt)
		if err != nil {
			var ae *applyError
			if errors.As(err, &ae) {
				result.Errors++
				log.Warnw("change not applied", "event_id", eventID, "reason", ae.reason)
				continue
			}
			return nil, err
		}
		result.Applied++
	}

	if err := centralTx.Commit(); err != nil {
		return nil, fmt.Errorf("commit event log: %w", err)
	}
	if err := tenantTx.Commit(); err != nil {
		// The event log already holds this batch, so a retry will be
		// deduplicated. The merge is lost until a snapshot upload.
		log.Errorw("tenant merge lost after event log commit", "error", err)
		return nil, fmt.Errorf("commit tenant merge: %w", err)
	}

	if result.Applied > 0 {
		s.cache.Invalidate(ctx, tenantID)
	}

	log.Infow("push complete",
		"received", result.Received, "applied", result.Applied,
		"skipped", result.Skipped, "errors", result.Errors)
	return result, nil
}

// Pull returns events strictly after the station's cursor in insertion order.
// NextSinceID echoes the cursor when there is nothing new, so stations can
// always persist it blindly.
func (s *SyncService) Pull(ctx context.Context, tenantID string, since int64, limit int) (*responses.PullResult, error) {
	if limit <= 0 {
		limit = defaultPullLimit
	}
	if limit > maxPullLimit {
		limit = maxPullLimit
	}

	events, err := s.events.Pull(ctx, tenantID, since, limit)
	if err != nil {
		return nil, err
	}

	result := &responses.PullResult{
		SinceID:     since,
		NextSinceID: since,
		Items:       make([]responses.PullEvent, 0, len(events)),
	}
	for _, ev := range events {
		result.Items = append(result.Items, responses.PullEvent{
			ID:         ev.ID,
			EventID:    ev.EventID,
			StationID:  ev.StationID,
			EntityType: ev.EntityType,
			EntityID:   ev.EntityID,
			ActionType: ev.ActionType,
			Payload:    ev.Payload,
			CreatedAt:  ev.CreatedAt,
			ReceivedAt: ev.ReceivedAt,
		})
	}
	if n := len(events); n > 0 {
		result.NextSinceID = events[n-1].ID
	}
	return result, nil
}

func appRequestID(ctx context.Context) string {
	return appcontext.RequestID(ctx)
}

// makeEventID derives the idempotency key for one change. The station-local
// sequence number is the strongest key; the station clock is the fallback. A
// change with neither gets a random key and is effectively never deduplicated.
func makeEventID(stationID string, item *requests.ChangeItem) string {
	if item.LocalID != nil {
		return fmt.Sprintf("%s:%d", stationID, *item.LocalID)
	}
	if item.CreatedAt != "" {
		return stationID + ":" + item.CreatedAt
	}
	return stationID + ":" + uuid.NewString()
}
