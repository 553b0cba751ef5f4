package cqrs

import (
	"time"
)

// CurrentAccountChangedEvent is published whenever a session switches its current account
type CurrentAccountChangedEvent struct {
	ServerID   string    `json:"server_id"`
	AccountKey string    `json:"account_key"`
	Name       string    `json:"name"`
	SignedIn   bool      `json:"signed_in"`
	Timestamp  time.Time `json:"timestamp"`
	RequestID  string    `json:"request_id"`
}

// AccountsRemovedEvent is published after accounts were removed from a session registry
type AccountsRemovedEvent struct {
	ServerID    string    `json:"server_id"`
	AccountKeys []string  `json:"account_keys"`
	Timestamp   time.Time `json:"timestamp"`
	RequestID   string    `json:"request_id"`
}

// SSENotificationEvent represents an event to send SSE notifications
type SSENotificationEvent struct {
	Type           string      `json:"type"`
	TargetAccounts []string    `json:"target_accounts,omitempty"` // empty for broadcast
	Method         string      `json:"method"`
	Params         interface{} `json:"params"`
	Timestamp      time.Time   `json:"timestamp"`
	RequestID      string      `json:"request_id"`
}

// Event types for different notification patterns
const (
	SSENotificationTypeBroadcast = "broadcast" // Send to every client
	SSENotificationTypeAccounts  = "accounts"  // Send to clients attached to the listed accounts
)

// Notification methods delivered to SSE clients
const (
	MethodCurrentAccountChanged = "account.current.changed"
	MethodSessionChanged        = "account.session.changed"
	MethodAccountsRemoved       = "account.removed"
	MethodPreferenceKeysChanged = "preference.keys.changed"
)
