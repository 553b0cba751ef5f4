package cqrs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/cqrs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danghamo/accountd/pkg/logger"
)

func TestBus_GoChannelRoundTrip(t *testing.T) {
	bus, err := NewBus(BusConfig{Backend: BackendGoChannel, TopicPrefix: "test-events"}, nil, logger.NewNop())
	require.NoError(t, err)

	var (
		mu       sync.Mutex
		received []*CurrentAccountChangedEvent
	)
	require.NoError(t, bus.AddHandlers(
		cqrs.NewEventHandler("TestCurrentAccountChanged", func(ctx context.Context, event *CurrentAccountChangedEvent) error {
			mu.Lock()
			defer mu.Unlock()
			received = append(received, event)
			return nil
		}),
	))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = bus.Run(ctx) }()
	<-bus.Running()
	defer bus.Close()

	require.NoError(t, bus.Publish(ctx, &CurrentAccountChangedEvent{
		ServerID:   "server-1",
		AccountKey: "u1",
		SignedIn:   true,
		Timestamp:  time.Now(),
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "u1", received[0].AccountKey)
	assert.True(t, received[0].SignedIn)
}

func TestBus_UnknownBackend(t *testing.T) {
	_, err := NewBus(BusConfig{Backend: "carrier-pigeon"}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestBus_RedisStreamNeedsClient(t *testing.T) {
	_, err := NewBus(BusConfig{Backend: BackendRedisStream}, nil, logger.NewNop())
	assert.Error(t, err)
}

func TestWatermillLogger(t *testing.T) {
	l := NewWatermillLogger(logger.NewNop()).With(watermill.LogFields{"topic": "t"})

	l.Info("info", watermill.LogFields{"a": 1})
	l.Debug("debug", nil)
	l.Trace("trace", nil)
	l.Error("error", errors.New("boom"), watermill.LogFields{"b": 2})

	adapter, ok := l.(*watermillLogger)
	require.True(t, ok)
	assert.Equal(t, "t", adapter.fields["topic"])
}
