package cqrs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// SSEBroadcastHelper publishes SSE notifications through the event bus so every server delivers them
type SSEBroadcastHelper struct {
	eventPublisher EventPublisher
}

// NewSSEBroadcastHelper creates a new SSE broadcast helper
func NewSSEBroadcastHelper(eventPublisher EventPublisher) *SSEBroadcastHelper {
	return &SSEBroadcastHelper{
		eventPublisher: eventPublisher,
	}
}

// BroadcastToAll sends a notification to every connected client on every server
func (h *SSEBroadcastHelper) BroadcastToAll(ctx context.Context, method string, params interface{}) error {
	event := &SSENotificationEvent{
		Type:      SSENotificationTypeBroadcast,
		Method:    method,
		Params:    params,
		Timestamp: time.Now(),
		RequestID: uuid.New().String(),
	}

	return h.eventPublisher.Publish(ctx, event)
}

// BroadcastToAccounts sends a notification to clients attached to the given accounts.
// Each server delivers only to its local clients.
func (h *SSEBroadcastHelper) BroadcastToAccounts(ctx context.Context, accountKeys []string, method string, params interface{}) error {
	if len(accountKeys) == 0 {
		return nil
	}

	event := &SSENotificationEvent{
		Type:           SSENotificationTypeAccounts,
		TargetAccounts: accountKeys,
		Method:         method,
		Params:         params,
		Timestamp:      time.Now(),
		RequestID:      uuid.New().String(),
	}

	return h.eventPublisher.Publish(ctx, event)
}

// EventPublisher interface for publishing events
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}
