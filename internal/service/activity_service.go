package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ldap-admin/internal/event"
	"ldap-admin/internal/model"
	"ldap-admin/pkg/apierror"
)

const (
	activityWriteTimeout = 5 * time.Second

	// maxPendingActivityWrites bounds the background writers. Record blocks once
	// that many inserts are in flight.
	maxPendingActivityWrites = 32
)

// ActivityStore persists activity records. *repository.ActivityRepository implements it.
type ActivityStore interface {
	Insert(ctx context.Context, record model.ActivityRecord) (model.ActivityRecord, error)
	Query(ctx context.Context, query model.ActivityQuery) ([]model.ActivityRecord, int, error)
	Delete(ctx context.Context, filter model.ActivityDeleteFilter) (int64, error)
	DeleteAll(ctx context.Context) (int64, error)
}

// activityRecorder is the write side used by the other services.
type activityRecorder interface {
	Record(ctx context.Context, actorID string, action string, details any, status string)
}

type ActivityService struct {
	store     ActivityStore
	bus       event.Bus
	paginator Paginator
	timeout   time.Duration
	slots     chan struct{}
	wg        sync.WaitGroup
}

func NewActivityService(store ActivityStore, bus event.Bus, paginator Paginator) *ActivityService {
	return &ActivityService{
		store:     store,
		bus:       bus,
		paginator: paginator,
		timeout:   activityWriteTimeout,
		slots:     make(chan struct{}, maxPendingActivityWrites),
	}
}

// Record appends an activity record in the background on one of a fixed number of
// writer slots. The write outlives the request context and its failures are only
// logged.
func (s *ActivityService) Record(ctx context.Context, actorID string, action string, details any, status string) {
	if s == nil || s.store == nil {
		return
	}

	if status == "" {
		status = model.StatusSuccess
	}

	raw, err := json.Marshal(details)
	if err != nil || details == nil {
		raw = []byte("{}")
	}

	record := model.ActivityRecord{
		Action:  action,
		Details: raw,
		Status:  status,
	}
	if actor := strings.TrimSpace(actorID); actor != "" {
		record.UserID = &actor
	}

	detached := context.WithoutCancel(ctx)
	s.slots <- struct{}{}
	s.wg.Go(func() {
		defer func() { <-s.slots }()

		writeCtx, cancel := context.WithTimeout(detached, s.timeout)
		defer cancel()

		saved, err := s.store.Insert(writeCtx, record)
		if err != nil {
			slog.Error("activity log write failed", "action", action, "actor", actorID, "error", err)
			return
		}

		if s.bus != nil {
			s.bus.Publish(event.Event{
				Type:    event.TypeActivityRecorded,
				Payload: saved,
				ActorID: actorID,
			})
		}
	})
}

// Close waits for in-flight writes.
func (s *ActivityService) Close() {
	if s == nil {
		return
	}
	s.wg.Wait()
}

func (s *ActivityService) Query(ctx context.Context, query model.ActivityQuery) ([]model.ActivityRecord, model.Pagination, error) {
	if status := strings.TrimSpace(query.Status); status != "" && status != model.StatusSuccess && status != model.StatusFailure {
		return nil, model.Pagination{}, apierror.Validation("status must be 'success' or 'failure'", status)
	}

	query.Page, query.PageSize = s.paginator.Normalize(query.Page, query.PageSize)

	records, total, err := s.store.Query(ctx, query)
	if err != nil {
		return nil, model.Pagination{}, err
	}

	return records, model.NewPagination(query.Page, query.PageSize, total), nil
}

// Clear deletes the records matching filter. At least one filter field is required.
func (s *ActivityService) Clear(ctx context.Context, actorID string, filter model.ActivityDeleteFilter) (int64, error) {
	if filter.IsEmpty() {
		return 0, apierror.Validation("at least one filter (olderThan, action, status) is required to clear logs", "")
	}

	deleted, err := s.store.Delete(ctx, filter)
	if err != nil {
		return 0, err
	}

	details := map[string]any{
		"action":       filter.Action,
		"status":       filter.Status,
		"deletedCount": deleted,
	}
	if filter.OlderThan != nil {
		details["olderThan"] = filter.OlderThan.UTC().Format(time.RFC3339)
	}
	s.Record(ctx, actorID, "logs_cleared", details, model.StatusSuccess)
	s.publishCleared(actorID, deleted)

	return deleted, nil
}

// ClearAll wipes the activity log when confirmation is exactly
// model.ClearAllConfirmation.
func (s *ActivityService) ClearAll(ctx context.Context, actorID string, confirmation string) (int64, error) {
	if confirmation != model.ClearAllConfirmation {
		return 0, apierror.Validation(fmt.Sprintf("confirmation required: add ?confirmation=%s to the request", model.ClearAllConfirmation), "")
	}

	deleted, err := s.store.DeleteAll(ctx)
	if err != nil {
		return 0, err
	}

	s.Record(ctx, actorID, "all_logs_cleared", map[string]any{"deletedCount": deleted}, model.StatusSuccess)
	s.publishCleared(actorID, deleted)

	return deleted, nil
}

func (s *ActivityService) publishCleared(actorID string, deleted int64) {
	if s.bus == nil {
		return
	}

	s.bus.Publish(event.Event{
		Type:    event.TypeLogsCleared,
		Payload: map[string]any{"deletedCount": deleted},
		ActorID: actorID,
	})
}
