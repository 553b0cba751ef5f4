// Package session wires the account registry, the current account state and
// the provider into one object that is created once and passed explicitly.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/internal/domain/shared"
	"github.com/danghamo/accountd/pkg/logger"
)

// Config describes the session
type Config struct {
	FilesRoot      string
	FallbackName   string
	RestoreOnStart bool
}

// Session owns the fallback identity and everything derived from it
type Session struct {
	logger     *logger.Logger
	config     Config
	fallback   account.Identity
	registry   *account.Registry
	state      *CurrentAccountState
	provider   *Provider
	repository account.Repository

	// persistMutex orders repository saves against deletes
	persistMutex sync.Mutex
	cancel       context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a session. repository may be nil, in which case nothing is persisted.
func New(cfg Config, repository account.Repository, log *logger.Logger) *Session {
	opts := []account.Option{account.WithFilesRoot(cfg.FilesRoot)}
	if cfg.FallbackName != "" {
		opts = append(opts, account.WithName(cfg.FallbackName))
	}
	fallback := account.NonSignedIn(opts...)

	registry := account.NewRegistry(fallback)
	state := NewCurrentAccountState(registry)

	return &Session{
		logger:     log.WithComponent("session"),
		config:     cfg,
		fallback:   fallback,
		registry:   registry,
		state:      state,
		provider:   NewProvider(registry, state, log),
		repository: repository,
	}
}

// Provider returns the account provider
func (s *Session) Provider() *Provider {
	return s.provider
}

// Fallback returns the non-signed-in identity of this session
func (s *Session) Fallback() account.Identity {
	return s.fallback
}

// NewIdentity creates a signed-in identity rooted at the session files root
func (s *Session) NewIdentity(key, name string) (account.Identity, error) {
	return account.NewIdentity(key, name, true, account.WithFilesRoot(s.config.FilesRoot))
}

// Start restores persisted state when configured, makes sure a current account
// is set and begins persisting changes
func (s *Session) Start(ctx context.Context) error {
	if s.config.RestoreOnStart && s.repository != nil {
		if err := s.Restore(ctx); err != nil {
			return err
		}
	}

	if _, ok := s.state.Current(); !ok {
		if err := s.provider.SetCurrentAccount(s.fallback); err != nil {
			return err
		}
	}

	if s.repository != nil {
		s.startPersisting(ctx)
	}

	s.logger.Info("Session started",
		zap.Int("accounts", s.registry.Len()),
		zap.Bool("persistent", s.repository != nil))
	return nil
}

// Restore loads persisted identities into the registry and re-applies the recorded current account
func (s *Session) Restore(ctx context.Context) error {
	if s.repository == nil {
		return nil
	}

	identities, err := s.repository.List(ctx)
	if err != nil {
		return shared.WrapDomainError(err, shared.ErrCodeInvalidOperation, "failed to list persisted accounts")
	}
	for _, identity := range identities {
		if identity.SameAccount(s.fallback) {
			continue
		}
		s.registry.Upsert(identity)
	}

	currentKey, err := s.repository.GetCurrent(ctx)
	if err != nil {
		return shared.WrapDomainError(err, shared.ErrCodeInvalidOperation, "failed to read persisted current account")
	}
	if currentKey == "" {
		return nil
	}

	current, err := s.registry.Lookup(currentKey)
	if err != nil {
		s.logger.Warn("Persisted current account is unknown, using fallback", zap.String("account_key", currentKey))
		current = s.fallback
	}

	s.logger.Info("Session restored",
		zap.Int("accounts", len(identities)),
		zap.String("current", current.Key()))
	return s.provider.SetCurrentAccount(current)
}

func (s *Session) startPersisting(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	sub := s.provider.ObserveCurrentAccount(ctx)

	s.provider.OnRemoved(func(keys []string) {
		s.persistMutex.Lock()
		defer s.persistMutex.Unlock()
		if err := s.repository.Delete(context.Background(), keys...); err != nil {
			s.logger.Error("Failed to delete persisted accounts", zap.Strings("account_keys", keys), zap.Error(err))
		}
	})

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for identity := range sub.C() {
			if err := s.persist(ctx, identity); err != nil {
				s.logger.WithAccountKey(identity.Key()).Error("Failed to persist current account", zap.Error(err))
			}
		}
	}()
}

// persist saves identity unless it was removed after being published.
// Removal deletes under the same lock once the registry entry is gone, so a
// stale save either lands before the delete or is skipped.
func (s *Session) persist(ctx context.Context, identity account.Identity) error {
	s.persistMutex.Lock()
	defer s.persistMutex.Unlock()

	if !s.registry.Contains(identity.Key()) {
		s.logger.WithAccountKey(identity.Key()).Debug("Skipping save of removed account")
		return nil
	}
	if err := s.repository.Save(ctx, identity); err != nil {
		return err
	}
	return s.repository.SaveCurrent(ctx, identity.Key())
}

// Close stops persistence and ends every current-account subscription
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.state.Close()
	s.wg.Wait()
}
