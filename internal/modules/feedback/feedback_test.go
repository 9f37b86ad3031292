package feedback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"commute/internal/testutil"
)

type memRecorder struct {
	mu    sync.Mutex
	items []Feedback
	err   error
}

func (m *memRecorder) Insert(_ context.Context, f Feedback) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, f)
	return m.err
}

func (m *memRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func TestRecordFeedback_PersistsInBackground(t *testing.T) {
	rec := &memRecorder{}
	svc := NewService(rec, nil, nil)

	svc.RecordFeedback(context.Background(), Feedback{TripID: "t1", UserID: "u1", Positive: true})

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.False(t, rec.items[0].CreatedAt.IsZero())
}

func TestRecordFeedback_StoreErrorIsSwallowed(t *testing.T) {
	rec := &memRecorder{err: errors.New("db down")}
	svc := NewService(rec, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	svc.RecordFeedback(ctx, Feedback{TripID: "t1", Positive: false})
	cancel()

	assert.Eventually(t, func() bool { return rec.count() == 1 }, time.Second, 5*time.Millisecond)
}

func TestStore_InsertSummarize(t *testing.T) {
	store := NewStore(testutil.SetupDB(t, "trip_feedback"))
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, store.Insert(ctx, Feedback{TripID: "t1", UserID: "u1", Positive: true, CreatedAt: now}))
	require.NoError(t, store.Insert(ctx, Feedback{TripID: "t1", UserID: "u1", Positive: false, CreatedAt: now}))
	require.NoError(t, store.Insert(ctx, Feedback{TripID: "t1", UserID: "u1", Positive: true, CreatedAt: now}))

	sum, err := store.Summarize(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, Summary{Positive: 2, Negative: 1}, sum)
}
