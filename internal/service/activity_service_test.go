package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ldap-admin/internal/event"
	"ldap-admin/internal/model"
	"ldap-admin/pkg/apierror"
)

type mockActivityStore struct {
	mock.Mock
}

func (m *mockActivityStore) Insert(ctx context.Context, record model.ActivityRecord) (model.ActivityRecord, error) {
	args := m.Called(ctx, record)
	return args.Get(0).(model.ActivityRecord), args.Error(1)
}

func (m *mockActivityStore) Query(ctx context.Context, query model.ActivityQuery) ([]model.ActivityRecord, int, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]model.ActivityRecord), args.Int(1), args.Error(2)
}

func (m *mockActivityStore) Delete(ctx context.Context, filter model.ActivityDeleteFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockActivityStore) DeleteAll(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func actionIs(action string) any {
	return mock.MatchedBy(func(r model.ActivityRecord) bool { return r.Action == action })
}

func TestActivityRecordWritesInBackground(t *testing.T) {
	t.Parallel()

	store := &mockActivityStore{}
	bus := event.NewBus()
	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	store.On("Insert", mock.Anything, mock.MatchedBy(func(r model.ActivityRecord) bool {
		var details map[string]any
		_ = json.Unmarshal(r.Details, &details)
		return r.Action == "login" && r.UserID != nil && *r.UserID == "alice" &&
			r.Status == model.StatusSuccess && details["method"] == "ldap"
	})).Return(model.ActivityRecord{ID: 7, Action: "login"}, nil).Once()

	svc := NewActivityService(store, bus, NewPaginator(50, 200))

	ctx, cancel := context.WithCancel(context.Background())
	svc.Record(ctx, "alice", "login", map[string]any{"method": "ldap"}, "")
	cancel()
	svc.Close()

	store.AssertExpectations(t)

	select {
	case e := <-events:
		assert.Equal(t, event.TypeActivityRecorded, e.Type)
		assert.Equal(t, "alice", e.ActorID)
	case <-time.After(time.Second):
		t.Fatal("expected an activity event")
	}
}

func TestActivityRecordFailureDoesNotReachCaller(t *testing.T) {
	t.Parallel()

	store := &mockActivityStore{}
	store.On("Insert", mock.Anything, mock.MatchedBy(func(r model.ActivityRecord) bool {
		return r.UserID == nil && string(r.Details) == "{}"
	})).Return(model.ActivityRecord{}, errors.New("database down")).Once()

	svc := NewActivityService(store, nil, NewPaginator(50, 200))
	svc.Record(context.Background(), "", "stats_view", nil, model.StatusSuccess)
	svc.Close()

	store.AssertExpectations(t)
}

// gatedStore holds every insert until release is closed.
type gatedStore struct {
	ActivityStore
	release  chan struct{}
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (g *gatedStore) Insert(_ context.Context, record model.ActivityRecord) (model.ActivityRecord, error) {
	n := g.inFlight.Add(1)
	for {
		peak := g.peak.Load()
		if n <= peak || g.peak.CompareAndSwap(peak, n) {
			break
		}
	}
	<-g.release
	g.inFlight.Add(-1)
	return record, nil
}

func TestActivityRecordBoundsPendingWrites(t *testing.T) {
	t.Parallel()

	store := &gatedStore{release: make(chan struct{})}
	svc := NewActivityService(store, nil, NewPaginator(50, 200))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range maxPendingActivityWrites + 3 {
			svc.Record(context.Background(), "alice", "user_search", nil, model.StatusSuccess)
		}
	}()

	require.Eventually(t, func() bool {
		return store.inFlight.Load() == maxPendingActivityWrites
	}, time.Second, 5*time.Millisecond)

	select {
	case <-done:
		t.Fatal("Record must wait for a free writer slot")
	case <-time.After(50 * time.Millisecond):
	}

	close(store.release)
	<-done
	svc.Close()

	assert.EqualValues(t, maxPendingActivityWrites, store.peak.Load())
	assert.Zero(t, store.inFlight.Load())
}

func TestActivityQueryNormalizesPage(t *testing.T) {
	t.Parallel()

	store := &mockActivityStore{}
	store.On("Query", mock.Anything, model.ActivityQuery{Action: "login", Page: 1, PageSize: 200}).
		Return([]model.ActivityRecord{{ID: 1}, {ID: 2}}, 450, nil).Once()

	svc := NewActivityService(store, nil, NewPaginator(50, 200))
	records, pagination, err := svc.Query(context.Background(), model.ActivityQuery{Action: "login", Page: -3, PageSize: 9999})
	require.NoError(t, err)

	assert.Len(t, records, 2)
	assert.Equal(t, 3, pagination.TotalPages)
	assert.True(t, pagination.HasNextPage)
	assert.False(t, pagination.HasPreviousPage)

	_, _, err = svc.Query(context.Background(), model.ActivityQuery{Status: "maybe"})
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)

	store.AssertExpectations(t)
}

func TestActivityQueryCapsHugePage(t *testing.T) {
	t.Parallel()

	store := &mockActivityStore{}
	wantPage := math.MaxInt / 50
	store.On("Query", mock.Anything, model.ActivityQuery{Page: wantPage, PageSize: 50}).
		Return([]model.ActivityRecord{}, 3, nil).Once()

	svc := NewActivityService(store, nil, NewPaginator(50, 200))
	records, pagination, err := svc.Query(context.Background(), model.ActivityQuery{Page: math.MaxInt})
	require.NoError(t, err)

	assert.Empty(t, records)
	assert.Equal(t, wantPage, pagination.CurrentPage)
	assert.False(t, pagination.HasNextPage)
	store.AssertExpectations(t)
}

func TestActivityClearRequiresFilter(t *testing.T) {
	t.Parallel()

	store := &mockActivityStore{}
	svc := NewActivityService(store, nil, NewPaginator(50, 200))

	_, err := svc.Clear(context.Background(), "alice", model.ActivityDeleteFilter{})
	var apiErr *apierror.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	store.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestActivityClearDeletesAndLogs(t *testing.T) {
	t.Parallel()

	cutoff := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	filter := model.ActivityDeleteFilter{OlderThan: &cutoff, Status: model.StatusFailure}

	store := &mockActivityStore{}
	store.On("Delete", mock.Anything, filter).Return(int64(12), nil).Once()
	store.On("Insert", mock.Anything, actionIs("logs_cleared")).Return(model.ActivityRecord{}, nil).Once()

	svc := NewActivityService(store, nil, NewPaginator(50, 200))
	deleted, err := svc.Clear(context.Background(), "alice", filter)
	svc.Close()

	require.NoError(t, err)
	assert.Equal(t, int64(12), deleted)
	store.AssertExpectations(t)
}

func TestActivityClearAllRequiresExactConfirmation(t *testing.T) {
	t.Parallel()

	store := &mockActivityStore{}
	svc := NewActivityService(store, nil, NewPaginator(50, 200))

	for _, confirmation := range []string{"", "yes", "YES_DELETE_ALL_LOGS ", "yes_delete_all_logs"} {
		_, err := svc.ClearAll(context.Background(), "alice", confirmation)
		var apiErr *apierror.APIError
		require.ErrorAs(t, err, &apiErr, confirmation)
		assert.Equal(t, http.StatusBadRequest, apiErr.HTTPStatus)
	}
	store.AssertNotCalled(t, "DeleteAll", mock.Anything)

	store.On("DeleteAll", mock.Anything).Return(int64(40), nil).Once()
	store.On("Insert", mock.Anything, actionIs("all_logs_cleared")).Return(model.ActivityRecord{}, nil).Once()

	deleted, err := svc.ClearAll(context.Background(), "alice", model.ClearAllConfirmation)
	svc.Close()

	require.NoError(t, err)
	assert.Equal(t, int64(40), deleted)
	store.AssertExpectations(t)
}
