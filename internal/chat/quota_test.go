package chat

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"hydrachat/internal/types"
)

type mockQuotaStore struct {
	mock.Mock
}

func (m *mockQuotaStore) GetByEmail(ctx context.Context, email string) (*types.Subscriber, error) {
	args := m.Called(ctx, email)
	if s := args.Get(0); s != nil {
		return s.(*types.Subscriber), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockQuotaStore) ResetIfNewDay(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockQuotaStore) IncrementUsage(ctx context.Context, email string, userID string, defaultTier types.Tier, defaultLimit int) (int, int, error) {
	args := m.Called(ctx, email, userID, defaultTier, defaultLimit)
	return args.Int(0), args.Int(1), args.Error(2)
}

func newTestTracker(store *mockQuotaStore) *Tracker {
	return NewTracker(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestTracker_CheckQuota_NoRowGetsBaseQuota(t *testing.T) {
	store := new(mockQuotaStore)
	tracker := newTestTracker(store)

	store.On("ResetIfNewDay", mock.Anything, "new@example.com").Return(nil)
	store.On("GetByEmail", mock.Anything, "new@example.com").Return(nil, nil)

	status, err := tracker.CheckQuota(context.Background(), "new@example.com")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 0, status.Count)
	assert.Equal(t, 100, status.Limit)
	assert.Equal(t, 100, status.Remaining)
}

func TestTracker_CheckQuota_UnderLimit(t *testing.T) {
	store := new(mockQuotaStore)
	tracker := newTestTracker(store)

	store.On("ResetIfNewDay", mock.Anything, mock.Anything).Return(nil)
	store.On("GetByEmail", mock.Anything, mock.Anything).Return(&types.Subscriber{
		DailyMessageCount: 299,
		DailyMessageLimit: 300,
	}, nil)

	status, err := tracker.CheckQuota(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 1, status.Remaining)
}

func TestTracker_CheckQuota_AtLimitDenied(t *testing.T) {
	store := new(mockQuotaStore)
	tracker := newTestTracker(store)

	store.On("ResetIfNewDay", mock.Anything, mock.Anything).Return(nil)
	store.On("GetByEmail", mock.Anything, mock.Anything).Return(&types.Subscriber{
		DailyMessageCount: 300,
		DailyMessageLimit: 300,
	}, nil)

	status, err := tracker.CheckQuota(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.False(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)
}

func TestTracker_CheckQuota_ZeroLimitRowFallsBackToBase(t *testing.T) {
	store := new(mockQuotaStore)
	tracker := newTestTracker(store)

	store.On("ResetIfNewDay", mock.Anything, mock.Anything).Return(nil)
	store.On("GetByEmail", mock.Anything, mock.Anything).Return(&types.Subscriber{
		DailyMessageCount: 5,
		DailyMessageLimit: 0,
	}, nil)

	status, err := tracker.CheckQuota(context.Background(), "alice@example.com")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 100, status.Limit)
}

func TestTracker_CheckQuota_StorageErrorFailsClosed(t *testing.T) {
	store := new(mockQuotaStore)
	tracker := newTestTracker(store)

	store.On("ResetIfNewDay", mock.Anything, mock.Anything).Return(nil)
	store.On("GetByEmail", mock.Anything, mock.Anything).
		Return(nil, types.NewAppError(types.ErrCodeInternalDB, "boom", errors.New("down")))

	_, err := tracker.CheckQuota(context.Background(), "alice@example.com")
	require.Error(t, err)
}

func TestTracker_RecordUsage(t *testing.T) {
	store := new(mockQuotaStore)
	tracker := newTestTracker(store)

	store.On("IncrementUsage", mock.Anything, "alice@example.com", "user-1", types.TierBase, 100).
		Return(43, 300, nil)

	status, err := tracker.RecordUsage(context.Background(), "alice@example.com", "user-1")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 43, status.Count)
	assert.Equal(t, 300, status.Limit)
	assert.Equal(t, 257, status.Remaining)
}

func TestTracker_RecordUsage_FinalMessageExhaustsQuota(t *testing.T) {
	store := new(mockQuotaStore)
	tracker := newTestTracker(store)

	store.On("IncrementUsage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(100, 100, nil)

	status, err := tracker.RecordUsage(context.Background(), "alice@example.com", "user-1")
	require.NoError(t, err)
	assert.True(t, status.Allowed)
	assert.Equal(t, 0, status.Remaining)
}
