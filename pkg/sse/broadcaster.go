package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/api/jsonrpcx"
	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/pkg/logger"
	"github.com/danghamo/accountd/pkg/replay"
)

// MethodCurrentAccountChanged is pushed to stream clients on every current account change
const MethodCurrentAccountChanged = "account.current.changed"

// SSEClient represents a connected SSE client
type SSEClient struct {
	ID         string
	AccountKey string
	Writer     http.ResponseWriter
	Flusher    http.Flusher
	Done       chan struct{}
	LastSeen   time.Time
	mutex      sync.Mutex // Protects concurrent writes to this client
	closeOnce  sync.Once
}

// close waits for an in-flight write so nothing is written after the handler returns
func (c *SSEClient) close() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.closeOnce.Do(func() { close(c.Done) })
}

// accountMessage represents a message targeted at the clients of one account
type accountMessage struct {
	AccountKey   string
	Notification jsonrpcx.JSONRPCNotification
}

// CurrentAccountSource is observed by HandleAccountStream
type CurrentAccountSource interface {
	ObserveCurrentAccount(ctx context.Context) *replay.Subscription[account.Identity]
}

// Config tunes the broadcaster
type Config struct {
	Heartbeat   time.Duration
	StaleAfter  time.Duration
	BufferSize  int
	CleanupTick time.Duration
}

func (c Config) withDefaults() Config {
	if c.Heartbeat <= 0 {
		c.Heartbeat = 30 * time.Second
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = 2 * c.Heartbeat
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 1000
	}
	if c.CleanupTick <= 0 {
		c.CleanupTick = 30 * time.Second
	}
	return c
}

// SSEBroadcaster manages SSE connections and broadcasts
type SSEBroadcaster struct {
	logger           *logger.Logger
	config           Config
	clients          map[string]*SSEClient
	accountClients   map[string][]*SSEClient
	mutex            sync.RWMutex
	broadcast        chan []byte
	accountBroadcast chan accountMessage
	cleanup          *time.Ticker
	shutdown         chan struct{}
	shutdownOnce     sync.Once
}

// NewSSEBroadcaster creates a new SSE broadcaster
func NewSSEBroadcaster(cfg Config, logger *logger.Logger) *SSEBroadcaster {
	cfg = cfg.withDefaults()
	broadcaster := &SSEBroadcaster{
		logger:           logger.WithComponent("sse-broadcaster"),
		config:           cfg,
		clients:          make(map[string]*SSEClient),
		accountClients:   make(map[string][]*SSEClient),
		broadcast:        make(chan []byte, cfg.BufferSize),
		accountBroadcast: make(chan accountMessage, cfg.BufferSize),
		cleanup:          time.NewTicker(cfg.CleanupTick),
		shutdown:         make(chan struct{}),
	}

	go broadcaster.broadcastLoop()
	go broadcaster.accountBroadcastLoop()
	go broadcaster.cleanupLoop()

	return broadcaster
}

// AddClient adds a new SSE client
func (b *SSEBroadcaster) AddClient(client *SSEClient) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	b.clients[client.ID] = client
	b.accountClients[client.AccountKey] = append(b.accountClients[client.AccountKey], client)

	b.logger.Debug("SSE client connected",
		zap.String("client_id", client.ID),
		zap.String("account_key", client.AccountKey))
}

// RemoveClient removes an SSE client
func (b *SSEBroadcaster) RemoveClient(clientID string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	client, exists := b.clients[clientID]
	if !exists {
		return
	}
	client.close()
	delete(b.clients, clientID)
	b.detachLocked(client)

	b.logger.Debug("SSE client disconnected",
		zap.String("client_id", clientID),
		zap.String("account_key", client.AccountKey))
}

// rebind moves a client to the clients of accountKey
func (b *SSEBroadcaster) rebind(client *SSEClient, accountKey string) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	if _, exists := b.clients[client.ID]; !exists || client.AccountKey == accountKey {
		return
	}
	b.detachLocked(client)
	client.AccountKey = accountKey
	b.accountClients[accountKey] = append(b.accountClients[accountKey], client)
}

func (b *SSEBroadcaster) detachLocked(client *SSEClient) {
	clients := b.accountClients[client.AccountKey]
	for i, c := range clients {
		if c.ID == client.ID {
			clients = append(clients[:i], clients[i+1:]...)
			break
		}
	}
	if len(clients) == 0 {
		delete(b.accountClients, client.AccountKey)
	} else {
		b.accountClients[client.AccountKey] = clients
	}
}

// BroadcastToAll sends a JSON-RPC notification to all connected clients
func (b *SSEBroadcaster) BroadcastToAll(notification jsonrpcx.JSONRPCNotification) {
	data, err := json.Marshal(notification)
	if err != nil {
		b.logger.Error("Failed to marshal JSON-RPC notification", zap.Error(err))
		return
	}

	select {
	case <-b.shutdown:
	case b.broadcast <- data:
	default:
		b.logger.Warn("Broadcast channel full, dropping message", zap.String("method", notification.Method))
	}
}

// BroadcastToAccounts sends a JSON-RPC notification to the local clients of the given accounts
func (b *SSEBroadcaster) BroadcastToAccounts(accountKeys []string, notification jsonrpcx.JSONRPCNotification) {
	if len(accountKeys) == 0 {
		return
	}

	b.mutex.RLock()
	local := make([]string, 0, len(accountKeys))
	for _, key := range accountKeys {
		if len(b.accountClients[key]) > 0 {
			local = append(local, key)
		}
	}
	b.mutex.RUnlock()

	if len(local) == 0 {
		b.logger.Debug("No target accounts connected to this server", zap.Strings("account_keys", accountKeys))
		return
	}

	for _, key := range local {
		select {
		case <-b.shutdown:
			return
		case b.accountBroadcast <- accountMessage{AccountKey: key, Notification: notification}:
		default:
			b.logger.Warn("Account broadcast channel full, dropping message", zap.String("account_key", key))
		}
	}
}

func (b *SSEBroadcaster) accountBroadcastLoop() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in accountBroadcastLoop", zap.Any("panic", r))
			go b.accountBroadcastLoop()
		}
	}()

	for {
		select {
		case <-b.shutdown:
			return
		case msg := <-b.accountBroadcast:
			b.mutex.RLock()
			clients := append([]*SSEClient(nil), b.accountClients[msg.AccountKey]...)
			b.mutex.RUnlock()

			if len(clients) == 0 {
				continue
			}

			data, err := json.Marshal(msg.Notification)
			if err != nil {
				b.logger.Error("Failed to marshal account notification", zap.Error(err))
				continue
			}
			b.sendAll(clients, data)
		}
	}
}

func (b *SSEBroadcaster) broadcastLoop() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in broadcastLoop", zap.Any("panic", r))
			go b.broadcastLoop()
		}
	}()

	for {
		select {
		case <-b.shutdown:
			return
		case data := <-b.broadcast:
			b.mutex.RLock()
			clients := make([]*SSEClient, 0, len(b.clients))
			for _, client := range b.clients {
				clients = append(clients, client)
			}
			b.mutex.RUnlock()

			b.sendAll(clients, data)
		}
	}
}

func (b *SSEBroadcaster) sendAll(clients []*SSEClient, data []byte) {
	for _, client := range clients {
		if err := b.sendToClient(client, data); err != nil {
			b.logger.Warn("Failed to send to client",
				zap.String("client_id", client.ID),
				zap.Error(err))
			b.RemoveClient(client.ID)
		}
	}
}

// sendToClient writes one SSE data frame
func (b *SSEBroadcaster) sendToClient(client *SSEClient, data []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic recovered: %v", r)
		}
	}()

	if client.Writer == nil || client.Flusher == nil {
		return fmt.Errorf("client %s has no writer", client.ID)
	}

	client.mutex.Lock()
	defer client.mutex.Unlock()

	select {
	case <-client.Done:
		return fmt.Errorf("client connection closed")
	default:
	}

	frame := fmt.Sprintf("data: %s\n\n", data)
	n, err := client.Writer.Write([]byte(frame))
	if err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if n != len(frame) {
		return fmt.Errorf("incomplete write: wrote %d/%d bytes", n, len(frame))
	}

	client.Flusher.Flush()
	client.LastSeen = time.Now()
	return nil
}

func (b *SSEBroadcaster) cleanupLoop() {
	for {
		select {
		case <-b.shutdown:
			return
		case <-b.cleanup.C:
			b.mutex.RLock()
			now := time.Now()
			stale := make([]string, 0)
			for clientID, client := range b.clients {
				client.mutex.Lock()
				if now.Sub(client.LastSeen) > b.config.StaleAfter {
					stale = append(stale, clientID)
				}
				client.mutex.Unlock()
			}
			b.mutex.RUnlock()

			for _, clientID := range stale {
				b.logger.Debug("Removing stale SSE client", zap.String("client_id", clientID))
				b.RemoveClient(clientID)
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (b *SSEBroadcaster) GetClientCount() int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.clients)
}

// AccountClientCount returns the number of clients attached to accountKey
func (b *SSEBroadcaster) AccountClientCount(accountKey string) int {
	b.mutex.RLock()
	defer b.mutex.RUnlock()
	return len(b.accountClients[accountKey])
}

// Close shuts down the broadcaster and disconnects every client
func (b *SSEBroadcaster) Close() {
	b.shutdownOnce.Do(func() {
		close(b.shutdown)
		b.cleanup.Stop()

		b.mutex.Lock()
		defer b.mutex.Unlock()

		for _, client := range b.clients {
			client.close()
		}
		b.clients = make(map[string]*SSEClient)
		b.accountClients = make(map[string][]*SSEClient)

		b.logger.Debug("SSE broadcaster shutdown complete")
	})
}

// HandleAccountStream streams current account changes. The first event is the
// current account at connect time; the client is attached to whichever account is current.
func (b *SSEBroadcaster) HandleAccountStream(source CurrentAccountSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Server-Sent Events not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")
		w.WriteHeader(http.StatusOK)

		client := &SSEClient{
			ID:       uuid.New().String(),
			Writer:   w,
			Flusher:  flusher,
			Done:     make(chan struct{}),
			LastSeen: time.Now(),
		}
		b.AddClient(client)
		defer b.RemoveClient(client.ID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sub := source.ObserveCurrentAccount(ctx)

		connected, _ := json.Marshal(map[string]string{"type": "connected", "client_id": client.ID})
		if err := b.sendToClient(client, connected); err != nil {
			return
		}

		heartbeat := time.NewTicker(b.config.Heartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-client.Done:
				return
			case <-ctx.Done():
				return
			case <-b.shutdown:
				return
			case identity, ok := <-sub.C():
				if !ok {
					return
				}
				b.rebind(client, identity.Key())
				data, err := json.Marshal(jsonrpcx.NewNotification(MethodCurrentAccountChanged, accountParams(identity)))
				if err != nil {
					b.logger.Error("Failed to marshal current account notification", zap.Error(err))
					continue
				}
				if err := b.sendToClient(client, data); err != nil {
					b.logger.Debug("Stream client went away", zap.String("client_id", client.ID), zap.Error(err))
					return
				}
			case <-heartbeat.C:
				beat, _ := json.Marshal(map[string]string{"type": "heartbeat", "timestamp": time.Now().Format(time.RFC3339)})
				if err := b.sendToClient(client, beat); err != nil {
					b.logger.Debug("Failed to send heartbeat", zap.String("client_id", client.ID), zap.Error(err))
					return
				}
			}
		}
	}
}

func accountParams(identity account.Identity) map[string]interface{} {
	return map[string]interface{}{
		"account_key": identity.Key(),
		"name":        identity.Name(),
		"signed_in":   identity.SignedIn(),
	}
}
