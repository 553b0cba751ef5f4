package cqrs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/app/session"
	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/pkg/logger"
	"github.com/danghamo/accountd/pkg/replay"
)

// AccountSource is the part of the accounts provider the relay listens to
type AccountSource interface {
	ObserveCurrentAccount(ctx context.Context) *replay.Subscription[account.Identity]
	OnRemoved(listener session.RemovalListener)
}

// AccountEventRelay republishes provider changes as events on the bus
type AccountEventRelay struct {
	source    AccountSource
	publisher EventPublisher
	serverID  string
	logger    *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewAccountEventRelay creates a relay; serverID tags every event with its origin
func NewAccountEventRelay(source AccountSource, publisher EventPublisher, serverID string, logger *logger.Logger) *AccountEventRelay {
	return &AccountEventRelay{
		source:    source,
		publisher: publisher,
		serverID:  serverID,
		logger:    logger.WithComponent("account-event-relay"),
	}
}

// Start subscribes to the provider. Events are published until ctx is done or Stop is called.
func (r *AccountEventRelay) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	sub := r.source.ObserveCurrentAccount(ctx)

	r.source.OnRemoved(func(keys []string) {
		if ctx.Err() != nil {
			return
		}
		event := &AccountsRemovedEvent{
			ServerID:    r.serverID,
			AccountKeys: keys,
			Timestamp:   time.Now(),
			RequestID:   uuid.New().String(),
		}
		if err := r.publisher.Publish(ctx, event); err != nil {
			r.logger.Error("Failed to publish accounts removed event",
				zap.Strings("account_keys", keys),
				zap.Error(err))
		}
	})

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		for identity := range sub.C() {
			event := &CurrentAccountChangedEvent{
				ServerID:   r.serverID,
				AccountKey: identity.Key(),
				Name:       identity.Name(),
				SignedIn:   identity.SignedIn(),
				Timestamp:  time.Now(),
				RequestID:  uuid.New().String(),
			}
			if err := r.publisher.Publish(ctx, event); err != nil {
				r.logger.WithAccountKey(identity.Key()).Error("Failed to publish current account changed event", zap.Error(err))
				continue
			}
			r.logger.WithAccountKey(identity.Key()).Debug("Current account change published",
				zap.String("request_id", event.RequestID))
		}
	}()

	r.logger.Info("Account event relay started", zap.String("server_id", r.serverID))
}

// Stop ends the subscription and waits for the publishing goroutine
func (r *AccountEventRelay) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}
