package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/danghamo/accountd/internal/domain/account"
	"github.com/danghamo/accountd/internal/domain/shared"
	"github.com/danghamo/accountd/pkg/replay"
)

// CurrentAccountState holds the current account and publishes every change.
// Registry upsert, current update and publish happen in one critical section.
// Readers load a snapshot and never wait on writers.
type CurrentAccountState struct {
	mutex    sync.Mutex
	registry *account.Registry
	current  atomic.Pointer[account.Identity]
	stream   *replay.Subject[account.Identity]
}

// NewCurrentAccountState creates a state with no current account
func NewCurrentAccountState(registry *account.Registry) *CurrentAccountState {
	return &CurrentAccountState{
		registry: registry,
		stream:   replay.NewSubject[account.Identity](),
	}
}

// Set makes identity the current account
func (s *CurrentAccountState) Set(identity account.Identity) error {
	if identity.IsZero() {
		return shared.ErrInvalidInput("Current account must have a key")
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.registry.Upsert(identity)
	s.current.Store(&identity)
	s.stream.Publish(identity)
	return nil
}

// Current returns the last identity passed to Set
func (s *CurrentAccountState) Current() (account.Identity, bool) {
	current := s.current.Load()
	if current == nil {
		return account.Identity{}, false
	}
	return *current, true
}

// IsSignedIn reports whether the current account is signed in
func (s *CurrentAccountState) IsSignedIn() bool {
	current := s.current.Load()
	return current != nil && current.SignedIn()
}

// Observe subscribes to current account changes, starting with the present one if any
func (s *CurrentAccountState) Observe(ctx context.Context) *replay.Subscription[account.Identity] {
	return s.stream.Subscribe(ctx)
}

// evict removes keys from the registry. When the current account is among them
// the fallback becomes current first. Returns the removed keys and whether the
// current account was switched.
func (s *CurrentAccountState) evict(keys []string) ([]string, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	fallback := s.registry.Fallback()
	switched := false
	if current := s.current.Load(); current != nil && !current.SameAccount(fallback) {
		for _, key := range keys {
			if key == current.Key() {
				s.registry.Upsert(fallback)
				s.current.Store(&fallback)
				s.stream.Publish(fallback)
				switched = true
				break
			}
		}
	}

	return s.registry.RemoveAll(keys...), switched
}

// Close ends every subscription
func (s *CurrentAccountState) Close() {
	s.stream.Close()
}
