package cqrs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/accountd/internal/app/session"
	"github.com/danghamo/accountd/pkg/logger"
)

func TestAccountEventRelay_PublishesChanges(t *testing.T) {
	s := session.New(session.Config{FilesRoot: "/data"}, nil, logger.NewNop())
	defer s.Close()
	require.NoError(t, s.Start(context.Background()))

	mockPublisher := &MockEventPublisher{}
	mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	relay := NewAccountEventRelay(s.Provider(), mockPublisher, "server-1", logger.NewNop())
	relay.Start(context.Background())
	defer relay.Stop()

	u1, err := s.NewIdentity("u1", "User One")
	require.NoError(t, err)
	require.NoError(t, s.Provider().SetCurrentAccount(u1))

	require.Eventually(t, func() bool {
		return len(mockPublisher.Events()) == 2
	}, 2*time.Second, 10*time.Millisecond)

	first, ok := mockPublisher.Events()[0].(*CurrentAccountChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "stub", first.AccountKey)
	assert.False(t, first.SignedIn)

	second, ok := mockPublisher.Events()[1].(*CurrentAccountChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "u1", second.AccountKey)
	assert.Equal(t, "User One", second.Name)
	assert.True(t, second.SignedIn)
	assert.Equal(t, "server-1", second.ServerID)
}

func TestAccountEventRelay_PublishesRemovals(t *testing.T) {
	s := session.New(session.Config{}, nil, logger.NewNop())
	defer s.Close()
	require.NoError(t, s.Start(context.Background()))

	u1, err := s.NewIdentity("u1", "User One")
	require.NoError(t, err)
	require.NoError(t, s.Provider().SetCurrentAccount(u1))

	mockPublisher := &MockEventPublisher{}
	mockPublisher.On("Publish", mock.Anything, mock.Anything).Return(nil)

	relay := NewAccountEventRelay(s.Provider(), mockPublisher, "server-1", logger.NewNop())
	relay.Start(context.Background())
	defer relay.Stop()

	s.Provider().RemoveAccounts("u1")

	require.Eventually(t, func() bool {
		for _, event := range mockPublisher.Events() {
			if removed, ok := event.(*AccountsRemovedEvent); ok {
				return assert.Equal(t, []string{"u1"}, removed.AccountKeys)
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)
}
