package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	cqrsevents "github.com/danghamo/accountd/internal/cqrs"
	"github.com/danghamo/accountd/pkg/logger"
)

// SSEBroadcaster interface for broadcasting SSE messages
type SSEBroadcaster interface {
	BroadcastToAccounts(accountKeys []string, notification jsonrpcx.JSONRPCNotification)
	BroadcastToAll(notification jsonrpcx.JSONRPCNotification)
}

// SSEEventHandler handles events and converts them to SSE notifications
type SSEEventHandler struct {
	sseBroadcaster SSEBroadcaster
	logger         *logger.Logger
}

// NewSSEEventHandler creates a new SSE event handler
func NewSSEEventHandler(sseBroadcaster SSEBroadcaster, logger *logger.Logger) *SSEEventHandler {
	return &SSEEventHandler{
		sseBroadcaster: sseBroadcaster,
		logger:         logger.WithComponent("sse-event-handler"),
	}
}

// HandleCurrentAccountChangedEvent tells every client which account a server switched to
func (h *SSEEventHandler) HandleCurrentAccountChangedEvent(ctx context.Context, event *cqrsevents.CurrentAccountChangedEvent) error {
	h.logger.WithAccountKey(event.AccountKey).Debug("Handling current account changed event",
		zap.String("server_id", event.ServerID),
		zap.String("request_id", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(cqrsevents.MethodSessionChanged, map[string]interface{}{
		"server_id":   event.ServerID,
		"account_key": event.AccountKey,
		"name":        event.Name,
		"signed_in":   event.SignedIn,
		"timestamp":   event.Timestamp.Format(time.RFC3339),
		"request_id":  event.RequestID,
	}))

	return nil
}

// HandleAccountsRemovedEvent notifies clients that accounts are gone
func (h *SSEEventHandler) HandleAccountsRemovedEvent(ctx context.Context, event *cqrsevents.AccountsRemovedEvent) error {
	h.logger.Debug("Handling accounts removed event",
		zap.Strings("account_keys", event.AccountKeys),
		zap.String("request_id", event.RequestID))

	h.sseBroadcaster.BroadcastToAll(jsonrpcx.NewNotification(cqrsevents.MethodAccountsRemoved, map[string]interface{}{
		"server_id":    event.ServerID,
		"account_keys": event.AccountKeys,
		"timestamp":    event.Timestamp.Format(time.RFC3339),
		"request_id":   event.RequestID,
	}))

	return nil
}

// HandleSSENotificationEvent handles SSENotificationEvent for distributed SSE messaging
func (h *SSEEventHandler) HandleSSENotificationEvent(ctx context.Context, event *cqrsevents.SSENotificationEvent) error {
	h.logger.Debug("Handling SSE notification event",
		zap.String("type", event.Type),
		zap.Strings("target_accounts", event.TargetAccounts),
		zap.String("method", event.Method),
		zap.String("request_id", event.RequestID))

	notification := jsonrpcx.NewNotification(event.Method, event.Params)

	switch event.Type {
	case cqrsevents.SSENotificationTypeAccounts:
		h.sseBroadcaster.BroadcastToAccounts(event.TargetAccounts, notification)
	case cqrsevents.SSENotificationTypeBroadcast:
		h.sseBroadcaster.BroadcastToAll(notification)
	default:
		h.logger.Warn("Unknown SSE notification type", zap.String("type", event.Type))
	}

	return nil
}
