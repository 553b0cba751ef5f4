package cqrs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockEventPublisher for testing
type MockEventPublisher struct {
	mock.Mock
	mutex           sync.Mutex
	PublishedEvents []interface{}
}

func (m *MockEventPublisher) Publish(ctx context.Context, event interface{}) error {
	m.mutex.Lock()
	m.PublishedEvents = append(m.PublishedEvents, event)
	m.mutex.Unlock()
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) Events() []interface{} {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]interface{}(nil), m.PublishedEvents...)
}

func TestSSEBroadcastHelper_BroadcastToAll(t *testing.T) {
	mockPublisher := &MockEventPublisher{}
	mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	helper := NewSSEBroadcastHelper(mockPublisher)

	params := map[string]interface{}{"account_key": "u1"}
	err := helper.BroadcastToAll(context.Background(), MethodAccountsRemoved, params)

	require.NoError(t, err)
	require.Len(t, mockPublisher.Events(), 1)

	event, ok := mockPublisher.Events()[0].(*SSENotificationEvent)
	require.True(t, ok)
	assert.Equal(t, SSENotificationTypeBroadcast, event.Type)
	assert.Equal(t, MethodAccountsRemoved, event.Method)
	assert.Equal(t, params, event.Params)
	assert.Empty(t, event.TargetAccounts)
	assert.NotEmpty(t, event.RequestID)
	assert.WithinDuration(t, time.Now(), event.Timestamp, time.Second)
}

func TestSSEBroadcastHelper_BroadcastToAccounts(t *testing.T) {
	mockPublisher := &MockEventPublisher{}
	mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	helper := NewSSEBroadcastHelper(mockPublisher)

	targets := []string{"u1", "u2"}
	err := helper.BroadcastToAccounts(context.Background(), targets, "account.notice", "hello")

	require.NoError(t, err)
	require.Len(t, mockPublisher.Events(), 1)

	event, ok := mockPublisher.Events()[0].(*SSENotificationEvent)
	require.True(t, ok)
	assert.Equal(t, SSENotificationTypeAccounts, event.Type)
	assert.Equal(t, targets, event.TargetAccounts)
}

func TestSSEBroadcastHelper_EmptyTargets(t *testing.T) {
	mockPublisher := &MockEventPublisher{}
	helper := NewSSEBroadcastHelper(mockPublisher)

	assert.NoError(t, helper.BroadcastToAccounts(context.Background(), nil, "account.notice", nil))
	assert.Empty(t, mockPublisher.Events())
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestSSEBroadcastHelper_PublishError(t *testing.T) {
	mockPublisher := &MockEventPublisher{}
	mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(errors.New("bus down"))

	helper := NewSSEBroadcastHelper(mockPublisher)

	err := helper.BroadcastToAll(context.Background(), "account.notice", nil)
	assert.EqualError(t, err, "bus down")
}
